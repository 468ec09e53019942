package sqlinline

const QSelectChurchMembership = `--sql c7a7d413-e564-48f5-81d4-a710d108c269
select church_id::text
from church_users
where user_id = $1::text
limit 1;
`

const QSelectChurch = `--sql 4384e7c1-9642-4f50-ba50-ddcde738660d
select id::text, name, currency, settings, settings_version, created_at, updated_at
from churches
where id = $1::uuid
limit 1;
`

const QSelectChurchSettings = `--sql f2d27ea0-39df-40a5-9a6b-932008a4399d
select settings, settings_version
from churches
where id = $1::uuid
limit 1;
`

// QUpdateChurchSettings only matches while the caller's version is current;
// zero affected rows means another writer got there first.
const QUpdateChurchSettings = `--sql 2814eafe-2496-4815-aa76-e0958b6fccc3
update churches
set settings = coalesce($2::jsonb, '{}'::jsonb),
    settings_version = settings_version + 1,
    updated_at = now()
where id = $1::uuid
  and settings_version = $3::bigint;
`
