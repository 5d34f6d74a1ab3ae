package sqlinline

// QDebitForJob settles a job exactly once. The partial unique index on
// credit_entries(job_id) makes the insert a no-op for a job already settled,
// and the balance update only fires when a row was actually inserted. An
// overdraft trips the non-negative balance check and aborts the statement.
// Returns no row when the debit was already applied.
const QDebitForJob = `--sql 5d02aa41-b52d-48dc-9201-afd1cf57b92f
with entry as (
  insert into credit_entries (id, user_id, job_id, entry_type, amount)
  values (gen_random_uuid(), $1::uuid, $2::uuid, 'debit', $3::int)
  on conflict (job_id) where job_id is not null do nothing
  returning id
)
update credit_accounts
set balance = balance - $3::int, updated_at = now()
where user_id = $1::uuid and exists (select 1 from entry)
returning balance;
`

const QSelectBalance = `--sql 19b631f4-9b19-45c1-8244-b6520c30908b
select balance from credit_accounts where user_id = $1::uuid;
`

// QSelectBalanceForUpdate locks the account row for the rest of the enclosing
// transaction. Completions for one user serialize on this lock, which also
// keeps concurrent history appends within capacity.
const QSelectBalanceForUpdate = `--sql 45ea4bca-87fc-4e34-af16-9aeb41905460
select balance from credit_accounts where user_id = $1::uuid for update;
`

const QSelectDebitForJob = `--sql e5cade93-b25c-4281-a092-a6cc0e558814
select amount from credit_entries where job_id = $1::uuid and entry_type = 'debit';
`

const QGrantCredits = `--sql 81d3fc81-0820-4347-a931-cdeda0a334b0
with entry as (
  insert into credit_entries (id, user_id, entry_type, amount, reason)
  values (gen_random_uuid(), $1::uuid, 'grant', $2::int, $3::text)
)
insert into credit_accounts (user_id, balance, updated_at)
values ($1::uuid, $2::int, now())
on conflict (user_id) do update
set balance = credit_accounts.balance + excluded.balance, updated_at = now()
returning balance;
`
