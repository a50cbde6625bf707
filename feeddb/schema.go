// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feeddb

const feedsTableSchema = `CREATE TABLE IF NOT EXISTS feeds (
	id BLOB PRIMARY KEY,
	kind INTEGER NOT NULL,
	createdAtBlock INTEGER NOT NULL,
	lastBlockIndex INTEGER NOT NULL
);`

const groupFeedsTableSchema = `CREATE TABLE IF NOT EXISTS groupFeeds (
	feedId BLOB PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	isPublic INTEGER NOT NULL DEFAULT 0,
	currentKeyGeneration INTEGER NOT NULL DEFAULT 0,
	isDeleted INTEGER NOT NULL DEFAULT 0
);`

const participantsTableSchema = `CREATE TABLE IF NOT EXISTS groupFeedParticipants (
	feedId BLOB NOT NULL,
	address TEXT NOT NULL,
	role INTEGER NOT NULL,
	joinedAtBlock INTEGER NOT NULL,
	leftAtBlock INTEGER,
	lastLeaveBlock INTEGER,
	PRIMARY KEY (feedId, address)
);
CREATE INDEX IF NOT EXISTS groupFeedParticipants_address ON groupFeedParticipants(address);`

const keyGenerationsTableSchema = `CREATE TABLE IF NOT EXISTS groupFeedKeyGenerations (
	feedId BLOB NOT NULL,
	version INTEGER NOT NULL,
	validFromBlock INTEGER NOT NULL,
	trigger INTEGER NOT NULL,
	PRIMARY KEY (feedId, version)
);`

const encryptedKeysTableSchema = `CREATE TABLE IF NOT EXISTS groupFeedEncryptedKeys (
	feedId BLOB NOT NULL,
	version INTEGER NOT NULL,
	memberAddress TEXT NOT NULL,
	ciphertext BLOB NOT NULL,
	PRIMARY KEY (feedId, version, memberAddress)
);
CREATE INDEX IF NOT EXISTS groupFeedEncryptedKeys_member ON groupFeedEncryptedKeys(feedId, memberAddress);`

const messagesTableSchema = `CREATE TABLE IF NOT EXISTS feedMessages (
	id BLOB PRIMARY KEY,
	feedId BLOB NOT NULL,
	ciphertext BLOB NOT NULL,
	sender TEXT NOT NULL,
	blockIndex INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	keyGeneration INTEGER NOT NULL,
	replyTo BLOB,
	authorCommitment BLOB
);
CREATE INDEX IF NOT EXISTS feedMessages_feed_block ON feedMessages(feedId, blockIndex);`

const attachmentsTableSchema = `CREATE TABLE IF NOT EXISTS attachments (
	id BLOB PRIMARY KEY,
	feedMessageId BLOB NOT NULL,
	encryptedOriginal BLOB NOT NULL,
	encryptedThumbnail BLOB,
	mimeType TEXT NOT NULL,
	fileName TEXT NOT NULL,
	contentHash BLOB NOT NULL,
	originalSize INTEGER NOT NULL,
	thumbnailSize INTEGER NOT NULL DEFAULT 0,
	createdAt INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS attachments_message ON attachments(feedMessageId);`

const readPositionsTableSchema = `CREATE TABLE IF NOT EXISTS feedReadPositions (
	userAddress TEXT NOT NULL,
	feedId BLOB NOT NULL,
	lastReadBlockIndex INTEGER NOT NULL,
	PRIMARY KEY (userAddress, feedId)
);`

const allTablesSchema = feedsTableSchema +
	groupFeedsTableSchema +
	participantsTableSchema +
	keyGenerationsTableSchema +
	encryptedKeysTableSchema +
	messagesTableSchema +
	attachmentsTableSchema +
	readPositionsTableSchema
