package postgres

const listMembersSQL = `
SELECT u.id, gm.group_id, u.display_name
FROM group_members gm
JOIN users u ON u.id = gm.user_id
WHERE gm.group_id = $1
ORDER BY u.id`

const listExpensesSQL = `
SELECT id, group_id, description, amount, currency, paid_by, created_at
FROM expenses
WHERE group_id = $1
ORDER BY created_at, id`

const listSplitsSQL = `
SELECT s.expense_id, s.member_id, s.share_amount
FROM expense_splits s
JOIN expenses e ON e.id = s.expense_id
WHERE e.group_id = $1
ORDER BY s.expense_id, s.member_id`

const listSettlementsSQL = `
SELECT id, group_id, from_member_id, to_member_id, amount, status, chain_ref, transaction_hash, created_at
FROM settlements
WHERE group_id = $1
ORDER BY created_at, id`

const walletAddressSQL = `SELECT wallet_address FROM users WHERE id = $1`

const insertSettlementSQL = `
INSERT INTO settlements (id, group_id, from_member_id, to_member_id, amount, status, chain_ref, transaction_hash, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

const insertExpenseSQL = `
INSERT INTO expenses (id, group_id, description, amount, currency, paid_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const insertSplitSQL = `
INSERT INTO expense_splits (expense_id, member_id, share_amount)
VALUES ($1, $2, $3)`

const insertOutboxEventSQL = `
INSERT INTO outbox_events (id, aggregate_id, aggregate_type, event_type, payload, created_at, published)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const unpublishedEventsSQL = `
SELECT id, aggregate_id, aggregate_type, event_type, payload, created_at, published_at, published
FROM outbox_events
WHERE NOT published
ORDER BY created_at
LIMIT $1`

const markEventPublishedSQL = `UPDATE outbox_events SET published = TRUE, published_at = $2 WHERE id = $1`

const deletePublishedEventsSQL = `DELETE FROM outbox_events WHERE published AND published_at < $1`
