package user

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/user"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type UserRepo interface {
	Create(dbc dbctx.Context, users []*user.User) ([]*user.User, error)
	// GetByID returns (nil, nil) when the user does not exist.
	GetByID(dbc dbctx.Context, userID int64) (*user.User, error)
	GetByIDs(dbc dbctx.Context, userIDs []int64) ([]*user.User, error)
	UpdateName(dbc dbctx.Context, userID int64, firstName, lastName string) error
	UpdateProfileImageKey(dbc dbctx.Context, userID int64, key string) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

func (ur *userRepo) Create(dbc dbctx.Context, users []*user.User) ([]*user.User, error) {
	if len(users) == 0 {
		return []*user.User{}, nil
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (ur *userRepo) GetByID(dbc dbctx.Context, userID int64) (*user.User, error) {
	if userID <= 0 {
		return nil, nil
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	var out user.User
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", userID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (ur *userRepo) GetByIDs(dbc dbctx.Context, userIDs []int64) ([]*user.User, error) {
	var results []*user.User
	if len(userIDs) == 0 {
		return results, nil
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", userIDs).
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) UpdateName(dbc dbctx.Context, userID int64, firstName, lastName string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&user.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"first_name": strings.TrimSpace(firstName),
			"last_name":  strings.TrimSpace(lastName),
		}).Error
}

func (ur *userRepo) UpdateProfileImageKey(dbc dbctx.Context, userID int64, key string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&user.User{}).
		Where("id = ?", userID).
		Update("profile_image_key", strings.TrimSpace(key)).Error
}
