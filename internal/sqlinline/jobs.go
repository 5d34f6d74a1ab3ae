package sqlinline

// Job columns scanned by jobs.scanJob, in this order everywhere.
const jobColumns = `id, user_id, client_job_id, module, params, status, estimated_cost,
       coalesce(actual_cost, 0), coalesce(preview_url, ''), coalesce(final_urls, '[]'::jsonb),
       coalesce(error_message, ''), created_at, updated_at`

const QInsertJob = `--sql 3630e0be-2659-4c02-8822-506c7c417965
insert into jobs (id, user_id, client_job_id, module, params, status, estimated_cost)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::jsonb, 'queued', $6::int)
on conflict (user_id, client_job_id) do nothing
returning ` + jobColumns + `;
`

const QSelectJobByClientID = `--sql e7bfc885-22de-4b41-a2d2-50ca60abb690
select ` + jobColumns + `
from jobs
where user_id = $1::uuid and client_job_id = $2::text;
`

const QSelectJob = `--sql e1256a82-7767-4d86-ba1a-e663126ef146
select ` + jobColumns + `
from jobs
where id = $1::uuid;
`

// Status transitions are compare-and-swap updates: the where clause names the
// states the transition is legal from, so the loser of a racing pair matches
// zero rows and falls back to an idempotent re-read.

const QMarkPreviewReady = `--sql ea6205da-1056-486a-ab7b-d4660aab2b1e
update jobs
set status = 'preview_ready', preview_url = $2::text, updated_at = now()
where id = $1::uuid and status in ('queued', 'processing')
returning ` + jobColumns + `;
`

const QCompleteJob = `--sql e93d1a54-d3aa-48c7-8bd8-95025a4c292d
update jobs
set status = 'completed', final_urls = $2::jsonb, actual_cost = $3::int, updated_at = now()
where id = $1::uuid and status in ('queued', 'processing', 'preview_ready')
returning ` + jobColumns + `;
`

const QFailJob = `--sql 38f29484-324d-451e-a04e-a76896e37145
update jobs
set status = 'failed', error_message = $2::text, updated_at = now()
where id = $1::uuid and status in ('queued', 'processing', 'preview_ready')
returning ` + jobColumns + `;
`
