package models

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = fmt.Errorf("user %w", utils.ErrorRecordNotFound)
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionRevoked     = errors.New("session has been revoked")
)

type User struct {
	UserId    int       `gorm:"column:user_id;primaryKey" json:"user_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      string    `gorm:"size:20;not null;default:'Bookkeeper'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=Admin Bookkeeper Manager"`
}

type LoginInfo struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

/*
redis keys:
	Token:$sessionId  -> user id, expires with the JWT
	Tokens:$userId    -> set of live session ids
*/

func sessionKey(sessionId string) string {
	return "Token:" + sessionId
}

func userSessionsKey(userId int) string {
	return "Tokens:" + strconv.Itoa(userId)
}

func (user *User) PrepareGive() {
	user.Name = html.EscapeString(strings.TrimSpace(user.Name))
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
}

// RegisterUser creates a user. Only an Admin caller may pick the role;
// everyone else is registered as Bookkeeper.
func RegisterUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	role := utils.RoleBookkeeper
	if identity, ok := utils.GetIdentityFromContext(ctx); ok && identity.IsAdmin() && input.Role != "" {
		role = input.Role
	}
	return createUser(ctx, input.Name, input.Email, input.Password, role)
}

// CreateAdminUser is used by the admin CLI to bootstrap the first account.
func CreateAdminUser(ctx context.Context, name string, email string, password string) (*User, error) {
	input := NewUser{Name: name, Email: email, Password: password, Role: utils.RoleAdmin}
	if err := validate.Struct(&input); err != nil {
		return nil, err
	}
	return createUser(ctx, name, email, password, utils.RoleAdmin)
}

func createUser(ctx context.Context, name string, email string, password string, role string) (*User, error) {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := User{
		Name:     name,
		Email:    email,
		Password: hashed,
		Role:     role,
	}
	user.PrepareGive()

	if err := utils.ValidateUnique[User](ctx, "email", user.Email, "", nil); err != nil {
		return nil, ErrEmailTaken
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

func GetUser(ctx context.Context, userId int) (*User, error) {
	user, err := utils.FetchModel[User](ctx, "user_id", userId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func getUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	db := config.GetDB()
	err := db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Take(&user).Error
	if err != nil {
		return nil, utils.NormalizeNotFound(err)
	}
	return &user, nil
}

func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {
	user, err := getUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return issueSession(ctx, user)
}

func issueSession(ctx context.Context, user *User) (*LoginInfo, error) {
	lifespan := config.GetSessionLifespan()
	token, sessionId, err := utils.JwtGenerate(user.UserId, user.Email, user.Role, lifespan)
	if err != nil {
		return nil, err
	}

	if err := config.AddRedisSet(ctx, userSessionsKey(user.UserId), sessionId); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue(ctx, sessionKey(sessionId), strconv.Itoa(user.UserId), lifespan); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:     token,
		ExpiresAt: time.Now().Add(lifespan).UTC(),
		User:      user,
	}, nil
}

// ValidateSession turns a session token into the request identity. With
// redis connected a revoked session id is rejected even if the JWT is valid.
func ValidateSession(ctx context.Context, token string) (utils.Identity, error) {
	claims, err := utils.ParseSessionToken(token)
	if err != nil {
		return utils.Identity{}, utils.ErrorUnauthorized
	}

	if config.GetRedisDB() != nil {
		_, exists, err := config.GetRedisValue(ctx, sessionKey(claims.Id))
		if err != nil {
			return utils.Identity{}, err
		}
		if !exists {
			return utils.Identity{}, ErrSessionRevoked
		}
	}

	return utils.Identity{
		UserId:    claims.ID,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionId: claims.Id,
	}, nil
}

func Logout(ctx context.Context) error {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return utils.ErrorUnauthorized
	}
	return revokeSession(ctx, identity.UserId, identity.SessionId)
}

func revokeSession(ctx context.Context, userId int, sessionId string) error {
	if sessionId == "" {
		return nil
	}
	if err := config.RemoveRedisKey(ctx, sessionKey(sessionId)); err != nil {
		return err
	}
	return config.RemoveRedisSetMember(ctx, userSessionsKey(userId), sessionId)
}

// RefreshSession rotates the caller's session. The user row is re-read so a
// changed role takes effect.
func RefreshSession(ctx context.Context) (*LoginInfo, error) {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}
	user, err := GetUser(ctx, identity.UserId)
	if err != nil {
		return nil, err
	}
	if err := revokeSession(ctx, identity.UserId, identity.SessionId); err != nil {
		return nil, err
	}
	return issueSession(ctx, user)
}

func (user *User) DestroyAllSessions(ctx context.Context) error {
	allSessions, err := config.GetRedisSetMembers(ctx, userSessionsKey(user.UserId))
	if err != nil {
		return err
	}
	for _, sessionId := range allSessions {
		if err := config.RemoveRedisKey(ctx, sessionKey(sessionId)); err != nil {
			return err
		}
	}
	return config.RemoveRedisKey(ctx, userSessionsKey(user.UserId))
}

// GetCurrentUser loads the user behind the request identity.
func GetCurrentUser(ctx context.Context) (*User, error) {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}
	return GetUser(ctx, identity.UserId)
}
