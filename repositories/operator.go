//go:generate go run go.uber.org/mock/mockgen -source=operator.go -destination=../mocks/mock_operator_repository.go -package=mocks
package repositories

import (
	"fmt"
	"stream-lab/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type IOperatorRepository interface {
	CreateOperator(email, hashedPassword string, roles []string) (string, error)
	GetOperatorByEmail(email string) (Operator, error)
}

type OperatorRepository struct {
	db  *badger.DB
	now func() time.Time
}

func NewOperatorRepository(db *badger.DB) IOperatorRepository {
	return &OperatorRepository{db: db, now: time.Now}
}

// Operator is an account allowed to drive the control API.
type Operator struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateOperator persists an operator with an already hashed password.
// It returns the newly generated operator ID
func (o OperatorRepository) CreateOperator(email, hashedPassword string, roles []string) (string, error) {
	if len(roles) == 0 {
		roles = []string{"operator"}
	}
	operator := Operator{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        roles,
		CreatedAt:    o.now().UTC().Truncate(time.Second),
	}

	data, err := json.Marshal(operator)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = o.db.Update(func(txn *badger.Txn) error {
		key := []byte("operator:" + email)
		if _, err = txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", err
	}
	return operator.ID, nil
}

// GetOperatorByEmail returns badger.ErrKeyNotFound when nobody registered this email.
func (o OperatorRepository) GetOperatorByEmail(email string) (Operator, error) {
	var operator Operator
	err := o.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("operator:" + email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &operator)
		})
	})
	if err != nil {
		return Operator{}, err
	}
	return operator, nil
}
