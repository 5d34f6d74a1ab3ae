package sqlinline

// QAppendHistory inserts a completed generation and evicts the oldest rows in
// the same statement, so the per-user capacity bound never transiently breaks.
// Both CTEs see one snapshot: the delete keeps the newest capacity-1 rows, the
// insert adds the new one. Returns the number of evicted rows.
const QAppendHistory = `--sql b4309500-48f8-47ca-bcca-d0eff79623dd
with evicted as (
  delete from history_entries
  where user_id = $1::uuid and job_id in (
    select job_id from history_entries
    where user_id = $1::uuid
    order by created_at desc, job_id desc
    offset $7::int - 1
  )
  returning job_id
), inserted as (
  insert into history_entries (user_id, job_id, module, preview_url, final_urls, credit_cost)
  values ($1::uuid, $2::uuid, $3::text, $4::text, $5::jsonb, $6::int)
  on conflict (job_id) do nothing
)
select count(*) from evicted;
`

const QListHistory = `--sql 2eaf0b0a-a944-427c-b82f-2ea5c2aa915a
select user_id, job_id, module, coalesce(preview_url, ''), final_urls, credit_cost, created_at
from history_entries
where user_id = $1::uuid and ($3::text = '' or module = $3::text)
order by created_at desc, job_id desc
limit $2::int;
`

const QDeleteHistory = `--sql dfd89666-d5d0-42b8-aed1-8580581a8793
delete from history_entries
where user_id = $1::uuid and job_id = $2::uuid;
`
