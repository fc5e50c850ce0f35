package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USERS
// The XP ledger. xp/level/streak/gems live in one row per user and are
// updated together through an optimistic check on xp.
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	display_name TEXT NOT NULL,
	xp BIGINT NOT NULL DEFAULT 0 CHECK (xp >= 0),
	level INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
	streak INTEGER NOT NULL DEFAULT 0 CHECK (streak >= 0),
	gems INTEGER NOT NULL DEFAULT 0 CHECK (gems >= 0),
	avatar TEXT NOT NULL DEFAULT 'avatar1',
	role TEXT NOT NULL DEFAULT 'USER',
	last_active_date DATE,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_xp ON users (xp DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: LEARNING CONTENT
// Modules, lessons, quizzes and per-user completion records. Lesson lock
// state is derived at read time from order_index + lesson_completions,
// it is never stored.
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS learning_modules (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS lessons (
	id BIGSERIAL PRIMARY KEY,
	module_id BIGINT NOT NULL REFERENCES learning_modules(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	order_index INTEGER NOT NULL,
	xp_reward BIGINT NOT NULL DEFAULT 0 CHECK (xp_reward >= 0),
	published BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_lessons_module_order ON lessons (module_id, order_index);

CREATE TABLE IF NOT EXISTS lesson_completions (
	username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
	lesson_id BIGINT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	completed BOOLEAN NOT NULL DEFAULT TRUE,
	completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (username, lesson_id)
);

CREATE TABLE IF NOT EXISTS quizzes (
	id BIGSERIAL PRIMARY KEY,
	lesson_id BIGINT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	title TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quizzes_lesson ON quizzes (lesson_id);

CREATE TABLE IF NOT EXISTS quiz_questions (
	id BIGSERIAL PRIMARY KEY,
	quiz_id BIGINT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
	question TEXT NOT NULL,
	options JSONB NOT NULL DEFAULT '[]',
	correct_option TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quiz_questions_quiz ON quiz_questions (quiz_id);
`

const migration002Down = `
DROP TABLE IF EXISTS quiz_questions;
DROP TABLE IF EXISTS quizzes;
DROP TABLE IF EXISTS lesson_completions;
DROP TABLE IF EXISTS lessons;
DROP TABLE IF EXISTS learning_modules;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: GAMIFICATION
// Badge catalog, per-user grants and environmental challenges with their
// one-per-user submissions.
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS badges (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	tier TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_badges (
	username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
	badge_code TEXT NOT NULL REFERENCES badges(code) ON DELETE CASCADE,
	granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (username, badge_code)
);

CREATE TABLE IF NOT EXISTS challenges (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	difficulty TEXT NOT NULL DEFAULT 'EASY',
	xp_reward BIGINT NOT NULL DEFAULT 0 CHECK (xp_reward >= 0)
);

CREATE TABLE IF NOT EXISTS challenge_submissions (
	username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
	challenge_id BIGINT NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
	image_path TEXT NOT NULL DEFAULT '',
	submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (username, challenge_id)
);
`

const migration003Down = `
DROP TABLE IF EXISTS challenge_submissions;
DROP TABLE IF EXISTS challenges;
DROP TABLE IF EXISTS user_badges;
DROP TABLE IF EXISTS badges;
`
