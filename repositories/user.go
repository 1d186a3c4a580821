//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chatwire/domain"
	"chatwire/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IUserRepository interface {
	CreateUser(displayName, email, hashedPassword string) (string, error)
	GetUserByEmail(email string) (User, error)
	GetIdentity(id string) (domain.Identity, error)
	ListIdentities() ([]domain.Identity, error)
	UpdateAvatar(id, avatarRef string) error
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the disk representation of an account. Identities handed to the
// rest of the system never carry the credential fields.
type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	Email        string    `json:"email"`
	AvatarRef    string    `json:"avatarRef,omitempty"`
	PasswordHash string    `json:"passwordHash"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Identity strips the account down to what peers are allowed to see.
func (u User) Identity() domain.Identity {
	return domain.Identity{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarRef:   u.AvatarRef,
		CreatedAt:   u.CreatedAt,
	}
}

// CreateUser persists a new account under "user:{id}" with an
// "email:{addr}" index for login lookups. It returns the generated ID.
func (u UserRepository) CreateUser(displayName, email, hashedPassword string) (string, error) {
	newID := uuid.New().String()
	record := User{
		ID:           newID,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte("email:" + email)
		if _, err = txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err = txn.Set(emailKey, []byte(newID)); err != nil {
			return err
		}
		return txn.Set([]byte("user:"+newID), data)
	})

	return newID, err
}

// GetUserByEmail resolves the email index and loads the full account.
func (u UserRepository) GetUserByEmail(email string) (User, error) {
	var record User

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("email:" + email))
		if err != nil {
			return err // Will be handled as ErrInvalidCredentials by the caller
		}

		var id []byte
		if err = item.Value(func(val []byte) error {
			id = append(id, val...)
			return nil
		}); err != nil {
			return err
		}

		item, err = txn.Get([]byte("user:" + string(id)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})

	if err != nil {
		return User{}, err
	}

	return record, nil
}

// GetIdentity loads the public identity for an account id.
func (u UserRepository) GetIdentity(id string) (domain.Identity, error) {
	record, err := u.getUserByID(id)
	if err != nil {
		return domain.Identity{}, err
	}
	return record.Identity(), nil
}

// ListIdentities returns every known identity, used for contact lists.
func (u UserRepository) ListIdentities() ([]domain.Identity, error) {
	var users []User

	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record User
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				users = append(users, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(users, func(record User, _ int) domain.Identity {
		return record.Identity()
	}), nil
}

// UpdateAvatar points an account at a freshly uploaded avatar reference.
func (u UserRepository) UpdateAvatar(id, avatarRef string) error {
	return u.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + id))
		if err != nil {
			return mapKeyNotFound(err)
		}

		var record User
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return err
		}

		record.AvatarRef = avatarRef
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set([]byte("user:"+id), data)
	})
}

func (u UserRepository) getUserByID(id string) (User, error) {
	var record User

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + id))
		if err != nil {
			return mapKeyNotFound(err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})

	if err != nil {
		return User{}, err
	}

	return record, nil
}

func mapKeyNotFound(err error) error {
	if err == badger.ErrKeyNotFound {
		return errors.ErrNotFound
	}
	return err
}
