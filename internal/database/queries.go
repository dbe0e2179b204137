/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

// Queries use '?' placeholders and are rebound per driver before execution.
const (
	// Profile queries
	queryGetProfile = `
		SELECT id, credits, data_sharing_opt_in, updated_at
		FROM profiles
		WHERE id = ?`

	queryInsertProfile = `
		INSERT INTO profiles (id, credits, data_sharing_opt_in, updated_at)
		VALUES (?, ?, ?, ?)
		RETURNING id, credits, data_sharing_opt_in, updated_at`

	queryUpdateDataSharing = `
		UPDATE profiles
		SET data_sharing_opt_in = ?, updated_at = ?
		WHERE id = ?
		RETURNING id, credits, data_sharing_opt_in, updated_at`

	queryProfileExists = `
		SELECT COUNT(*) FROM profiles WHERE id = ?`

	// Credit queries
	queryDebitCredits = `
		UPDATE profiles
		SET credits = credits - ?, updated_at = ?
		WHERE id = ? AND credits >= ?`

	queryAddCredits = `
		UPDATE profiles
		SET credits = credits + ?, updated_at = ?
		WHERE id = ?
		RETURNING credits`

	queryGetCredits = `
		SELECT credits FROM profiles WHERE id = ?`

	queryInsertReservation = `
		INSERT INTO credit_reservations (id, user_id, amount, reason, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryCaptureReservation = `
		UPDATE credit_reservations
		SET status = 'captured', settled_at = ?
		WHERE id = ? AND status IN ('pending', 'fulfilled')
		RETURNING user_id, amount, reason`

	queryReleaseReservation = `
		UPDATE credit_reservations
		SET status = 'released', settled_at = ?
		WHERE id = ? AND status = 'pending'
		RETURNING user_id, amount, reason`

	queryMarkReservationFulfilled = `
		UPDATE credit_reservations
		SET status = 'fulfilled'
		WHERE id = ? AND status IN ('pending', 'fulfilled')`

	queryReservationExists = `
		SELECT COUNT(*) FROM credit_reservations WHERE id = ?`

	queryListStaleReservations = `
		SELECT id, user_id, amount, reason, status, created_at, settled_at
		FROM credit_reservations
		WHERE status IN ('pending', 'fulfilled') AND created_at < ?
		ORDER BY created_at
		LIMIT ?`

	queryInsertCreditTransaction = `
		INSERT INTO credit_transactions
			(id, user_id, amount, balance_after, transaction_type, description, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryCheckDuplicateReference = `
		SELECT id FROM credit_transactions WHERE reference = ?`

	queryGetCreditHistory = `
		SELECT id, user_id, amount, balance_after, transaction_type, description, reference, created_at
		FROM credit_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	// Contest queries
	queryListActiveContests = `
		SELECT id, title, status, first_submission_price, additional_submission_price,
		       votes_per_token, currency, created_at
		FROM contests
		WHERE status = 'active'
		ORDER BY created_at DESC`

	queryGetContest = `
		SELECT id, title, status, first_submission_price, additional_submission_price,
		       votes_per_token, currency, created_at
		FROM contests
		WHERE id = ?`

	queryInsertContest = `
		INSERT INTO contests
			(id, title, status, first_submission_price, additional_submission_price,
			 votes_per_token, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	// Submission token queries
	queryCountSubmissionTokens = `
		SELECT COUNT(*)
		FROM submission_tokens
		WHERE contest_id = ? AND user_id = ?`

	queryListSubmissionTokens = `
		SELECT id, contest_id, user_id, payment_intent_id, votes_remaining, created_at
		FROM submission_tokens
		WHERE contest_id = ? AND user_id = ?
		ORDER BY created_at`

	queryInsertSubmissionToken = `
		INSERT INTO submission_tokens (id, contest_id, user_id, payment_intent_id, votes_remaining, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		credits INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
		data_sharing_opt_in BOOLEAN NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contests (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		first_submission_price INTEGER NOT NULL,
		additional_submission_price INTEGER NOT NULL,
		votes_per_token INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'usd',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contests_status ON contests(status);

	CREATE TABLE IF NOT EXISTS submission_tokens (
		id TEXT PRIMARY KEY,
		contest_id TEXT NOT NULL REFERENCES contests(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		payment_intent_id TEXT NOT NULL UNIQUE,
		votes_remaining INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submission_tokens_contest_user ON submission_tokens(contest_id, user_id);

	CREATE TABLE IF NOT EXISTS credit_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		transaction_type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_credit_transactions_user_created ON credit_transactions(user_id, created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_transactions_reference
		ON credit_transactions(reference) WHERE reference <> '';

	CREATE TABLE IF NOT EXISTS credit_reservations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL CHECK (amount > 0),
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		settled_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_credit_reservations_status_created ON credit_reservations(status, created_at);
`
