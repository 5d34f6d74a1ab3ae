package sqlinline

// QWorkerClaimJob hands the oldest queued job to a worker and flips it to
// processing in one statement. SKIP LOCKED lets concurrent workers claim
// different jobs without blocking each other.
const QWorkerClaimJob = `--sql bb6ef88f-5ca5-4864-9245-b7337ff51cca
with next_job as (
    select id
    from jobs
    where status = 'queued'
    order by created_at asc
    for update skip locked
    limit 1
)
update jobs
set status = 'processing', updated_at = now()
where id in (select id from next_job)
returning id, user_id, module, params, estimated_cost;
`
