// Package user содержит доменную модель пользователя платформы EcoLearn.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package user

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrUserNotFound возвращается, когда пользователь не найден.
	ErrUserNotFound = errors.New("user: not found")

	// ErrUserAlreadyExists возвращается при попытке создать дубликат.
	ErrUserAlreadyExists = errors.New("user: already exists")

	// ErrInvalidUsername возвращается при некорректном имени пользователя.
	ErrInvalidUsername = errors.New("user: invalid username")

	// ErrNegativeAward возвращается при попытке начислить отрицательный XP.
	// XP монотонно не убывает - ядро никогда не списывает опыт.
	ErrNegativeAward = errors.New("user: award amount cannot be negative")

	// ErrConcurrentUpdate возвращается хранилищем, когда оптимистичная
	// блокировка не прошла (xp изменился между чтением и записью).
	ErrConcurrentUpdate = errors.New("user: concurrent update conflict")
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Username представляет уникальное имя пользователя.
type Username string

// IsValid проверяет корректность имени пользователя.
func (u Username) IsValid() bool {
	s := string(u)
	return len(s) >= 2 && len(s) <= 50 && !strings.ContainsAny(s, " \t\n\r")
}

// String возвращает строковое представление имени.
func (u Username) String() string {
	return string(u)
}

// NewUsername создаёт Username с валидацией.
func NewUsername(s string) (Username, error) {
	username := Username(s)
	if !username.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidUsername, s)
	}
	return username, nil
}

// XP представляет очки опыта пользователя.
type XP int64

// IsValid проверяет, что XP неотрицательный.
func (x XP) IsValid() bool {
	return x >= 0
}

// Add складывает XP.
func (x XP) Add(delta XP) XP {
	return x + delta
}

// Level представляет уровень пользователя, вычисляемый из XP.
type Level int

// CalculateLevel вычисляет уровень на основе XP.
// Формула: level = floor(sqrt(xp / 100)) + 1, то есть уровень L
// начинается с xp = 100 * (L-1)^2. Level(0) = 1.
func CalculateLevel(xp XP) Level {
	if xp < 0 {
		return 1
	}
	return Level(math.Floor(math.Sqrt(float64(xp)/100.0))) + 1
}

// LevelThreshold возвращает XP, с которого начинается указанный уровень.
func LevelThreshold(level Level) XP {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return XP(100 * n * n)
}

// Role определяет роль пользователя в системе.
type Role string

const (
	// RoleUser - обычный пользователь.
	RoleUser Role = "USER"

	// RoleAdmin - администратор (управление контентом вне ядра).
	RoleAdmin Role = "ADMIN"
)

// IsValid проверяет корректность роли.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ══════════════════════════════════════════════════════════════════════════════
// USER ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// User - запись опыта пользователя (XP Ledger).
// Инварианты:
//   - XP >= 0 и монотонно не убывает;
//   - Level == CalculateLevel(XP) после любой мутации;
//   - Streak >= 0, Gems >= 0;
//   - мутации проходят только через начисление опыта (ApplyAward).
type User struct {
	// ID - внутренний идентификатор (UUID).
	ID string

	// Username - уникальное имя пользователя.
	Username Username

	// PasswordHash - bcrypt-хеш пароля (аутентификация - внешний слой).
	PasswordHash string

	// DisplayName - отображаемое имя.
	DisplayName string

	// XP - текущие очки опыта.
	XP XP

	// Level - уровень, производный от XP.
	Level Level

	// Streak - текущая серия активных дней подряд.
	Streak int

	// Gems - внутренняя валюта, начисляется за значки.
	Gems int

	// Avatar - идентификатор аватара.
	Avatar string

	// Role - роль пользователя.
	Role Role

	// LastActiveDate - дата последней активности (для подсчёта Streak).
	LastActiveDate time.Time

	// CreatedAt - время регистрации.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewUserParams - параметры создания пользователя.
type NewUserParams struct {
	ID           string
	Username     string
	PasswordHash string
	DisplayName  string
}

// NewUser создаёт нового пользователя с начальным состоянием:
// xp=0, level=1, streak=0, gems=0.
func NewUser(params NewUserParams) (*User, error) {
	username := Username(params.Username)
	if !username.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, params.Username)
	}

	displayName := params.DisplayName
	if displayName == "" {
		displayName = params.Username
	}

	now := time.Now().UTC()

	return &User{
		ID:           params.ID,
		Username:     username,
		PasswordHash: params.PasswordHash,
		DisplayName:  displayName,
		XP:           0,
		Level:        1,
		Streak:       0,
		Gems:         0,
		Avatar:       "avatar1",
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTATIONS
// ══════════════════════════════════════════════════════════════════════════════

// AwardApplied описывает результат применения начисления к записи.
type AwardApplied struct {
	OldXP    XP
	NewXP    XP
	OldLevel Level
	NewLevel Level
}

// LeveledUp сообщает, пересёк ли пользователь границу уровня.
func (a AwardApplied) LeveledUp() bool {
	return a.NewLevel > a.OldLevel
}

// ApplyAward применяет начисление XP к записи: увеличивает XP,
// пересчитывает уровень и обновляет серию активных дней.
// Начисление нуля допустимо (состояние не меняется, кроме Streak).
func (u *User) ApplyAward(amount XP, now time.Time) (AwardApplied, error) {
	if amount < 0 {
		return AwardApplied{}, ErrNegativeAward
	}

	applied := AwardApplied{
		OldXP:    u.XP,
		OldLevel: u.Level,
	}

	u.XP = u.XP.Add(amount)
	u.Level = CalculateLevel(u.XP)
	u.touchStreak(now)
	u.UpdatedAt = now.UTC()

	applied.NewXP = u.XP
	applied.NewLevel = u.Level
	return applied, nil
}

// AddGems начисляет внутреннюю валюту (например, бонус за значок).
func (u *User) AddGems(amount int) {
	if amount <= 0 {
		return
	}
	u.Gems += amount
}

// SpendGems списывает внутреннюю валюту. Баланс не опускается ниже нуля.
func (u *User) SpendGems(amount int) {
	if amount <= 0 {
		return
	}
	u.Gems -= amount
	if u.Gems < 0 {
		u.Gems = 0
	}
}

// touchStreak обновляет серию активных дней:
// тот же день - без изменений, следующий день - серия растёт,
// пропуск - серия начинается заново.
func (u *User) touchStreak(now time.Time) {
	today := truncateToDay(now)
	last := truncateToDay(u.LastActiveDate)

	switch {
	case u.LastActiveDate.IsZero():
		u.Streak = 1
	case last.Equal(today):
		// Уже активен сегодня.
		return
	case today.Sub(last) == 24*time.Hour:
		u.Streak++
	default:
		u.Streak = 1
	}

	u.LastActiveDate = today
}

// truncateToDay обнуляет время, оставляя дату в UTC.
func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// XPToNextLevel возвращает, сколько XP осталось до следующего уровня.
func (u *User) XPToNextLevel() XP {
	next := LevelThreshold(u.Level + 1)
	if next <= u.XP {
		return 0
	}
	return next - u.XP
}

// String возвращает краткое описание пользователя.
func (u *User) String() string {
	return fmt.Sprintf("User(%s, xp=%d, level=%d)", u.Username, u.XP, u.Level)
}

// Clone возвращает глубокую копию записи.
func (u *User) Clone() *User {
	clone := *u
	return &clone
}
