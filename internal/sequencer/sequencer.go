package sequencer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	// CounterName is the counters row backing order numbers.
	CounterName   = "orders"
	defaultPrefix = "K&K"
	defaultSeed   = 1000
)

// OrderNumber is a reserved sequence value and its display form.
type OrderNumber struct {
	Value     int64
	Formatted string
}

func (n OrderNumber) String() string {
	return n.Formatted
}

// Format renders a sequence value as #<prefix><n>.
func Format(prefix string, n int64) string {
	return fmt.Sprintf("#%s%d", prefix, n)
}

// Reserver hands out order numbers.
type Reserver interface {
	Next(ctx context.Context) (OrderNumber, error)
}

// Sequencer allocates strictly increasing order numbers from a locked counter row.
type Sequencer struct {
	db     *gorm.DB
	prefix string
	seed   int64
}

// New builds a sequencer over db using the checkout prefix and seed.
func New(db *gorm.DB, cfg config.CheckoutConfig) (*Sequencer, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	prefix := strings.TrimSpace(cfg.OrderPrefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	seed := cfg.CounterSeed
	if seed <= 0 {
		seed = defaultSeed
	}
	return &Sequencer{db: db, prefix: prefix, seed: seed}, nil
}

// Next reserves the next order number in its own transaction. Any failure is a
// reservation error and no number is consumed.
func (s *Sequencer) Next(ctx context.Context) (OrderNumber, error) {
	var reserved OrderNumber
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.NextTx(tx)
		if err != nil {
			return err
		}
		reserved = n
		return nil
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeReservation) {
			return OrderNumber{}, err
		}
		return OrderNumber{}, pkgerrors.Wrap(pkgerrors.CodeReservation, err, "reserve order number")
	}
	return reserved, nil
}

// NextTx increments the counter inside the caller's transaction.
func (s *Sequencer) NextTx(tx *gorm.DB) (OrderNumber, error) {
	counter, err := s.lockCounter(tx)
	if err != nil {
		return OrderNumber{}, pkgerrors.Wrap(pkgerrors.CodeReservation, err, "lock order counter")
	}

	next := counter.LastOrderNumber + 1
	res := tx.Model(&models.OrderCounter{}).
		Where("name = ? AND last_order_number = ?", CounterName, counter.LastOrderNumber).
		Update("last_order_number", next)
	if res.Error != nil {
		return OrderNumber{}, pkgerrors.Wrap(pkgerrors.CodeReservation, res.Error, "advance order counter")
	}
	if res.RowsAffected != 1 {
		return OrderNumber{}, pkgerrors.New(pkgerrors.CodeReservation, "order counter moved during reservation")
	}

	return OrderNumber{Value: next, Formatted: Format(s.prefix, next)}, nil
}

// Current returns the last issued value without reserving one.
func (s *Sequencer) Current(ctx context.Context) (int64, error) {
	var counter models.OrderCounter
	err := s.db.WithContext(ctx).Where("name = ?", CounterName).Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.seed, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.LastOrderNumber, nil
}

func (s *Sequencer) lockCounter(tx *gorm.DB) (*models.OrderCounter, error) {
	var counter models.OrderCounter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", CounterName).
		Take(&counter).Error
	if err == nil {
		return &counter, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	seed := models.OrderCounter{Name: CounterName, LastOrderNumber: s.seed}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("seed order counter: %w", err)
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", CounterName).
		Take(&counter).Error; err != nil {
		return nil, err
	}
	return &counter, nil
}
