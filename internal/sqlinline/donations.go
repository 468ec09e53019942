package sqlinline

const QListUnsyncedDonations = `--sql 75d3f09f-d1cd-4ca4-a0c3-788610375c0d
select
    d.id::text,
    d.church_id::text,
    d.amount_cents,
    d.status,
    d.method,
    d.donated_at,
    coalesce(nullif(trim(concat_ws(' ', dn.first_name, dn.last_name)), ''), '') as donor_name,
    coalesce(dn.email, '') as donor_email,
    coalesce(f.name, '') as fund_name,
    d.created_at
from donations d
left join donors dn on dn.id = d.donor_id
left join funds f on f.id = d.fund_id
where d.church_id = $1::uuid
  and d.status = $2::text
  and not exists (
      select 1
      from donation_ledger_syncs s
      where s.donation_id = d.id
        and s.provider = $3::text
  )
order by d.created_at asc, d.id asc
limit $4::int;
`

const QInsertLedgerSync = `--sql e4fcd1f4-1547-4a42-a497-b707dbbacfb0
insert into donation_ledger_syncs (donation_id, church_id, provider, external_id, synced_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::timestamptz)
on conflict (donation_id, provider) do nothing;
`
