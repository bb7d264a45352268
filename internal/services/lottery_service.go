package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/ledger"
	"lottery-ledger/internal/models"

	"github.com/google/logger"
)

// MaxTicketsPerPurchase caps Params.MaxTicketsPerTx.
const MaxTicketsPerPurchase = 10

// Params are the economic and timing constants of the lottery. Amounts are
// in the smallest unit of the payment currency.
type Params struct {
	TicketPrice     uint64
	ProtocolFee     uint64
	ActivationFee   uint64
	PoolSize        uint64
	MaxTicketsPerTx uint8
	RoundDuration   time.Duration
	AdminWallet     address.Address
}

// Validate checks the parameters are usable.
func (p Params) Validate() error {
	switch {
	case p.TicketPrice == 0:
		return errors.New("ticket price must be positive")
	case p.ProtocolFee >= p.TicketPrice:
		return errors.New("protocol fee must be lower than the ticket price")
	case p.PoolSize == 0:
		return errors.New("pool size must be positive")
	case p.MaxTicketsPerTx == 0:
		return errors.New("max tickets per purchase must be positive")
	case p.MaxTicketsPerTx > MaxTicketsPerPurchase:
		return fmt.Errorf("max tickets per purchase must be at most %d", MaxTicketsPerPurchase)
	case p.RoundDuration < time.Second:
		return errors.New("round duration must be at least one second")
	case p.AdminWallet.IsZero():
		return ErrInvalidAdminWallet
	}
	return nil
}

func (p Params) durationSeconds() int64 { return int64(p.RoundDuration / time.Second) }

// LotteryService coordinates the round lifecycle over the ledger. Every
// state-changing method runs as one ledger transaction.
type LotteryService struct {
	store    *ledger.Store
	resolver *address.Resolver
	params   Params
	drawer   Drawer
	now      func() time.Time
}

// Option customises a LotteryService.
type Option func(*LotteryService)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *LotteryService) { s.now = now }
}

// WithDrawer replaces the winner selection.
func WithDrawer(d Drawer) Option {
	return func(s *LotteryService) { s.drawer = d }
}

// NewLotteryService creates a LotteryService.
func NewLotteryService(store *ledger.Store, resolver *address.Resolver, params Params, opts ...Option) (*LotteryService, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("lottery params: %w", err)
	}
	s := &LotteryService{
		store:    store,
		resolver: resolver,
		params:   params,
		drawer:   NewXOFDrawer(nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Params returns the configured lottery parameters.
func (s *LotteryService) Params() Params { return s.params }

// Resolver returns the address resolver the service derives with.
func (s *LotteryService) Resolver() *address.Resolver { return s.resolver }

// ActivateUser performs the one-time activation of user and journals the
// activation fee to the admin wallet.
func (s *LotteryService) ActivateUser(ctx context.Context, user address.Address) (*models.UserProfile, error) {
	profileAddr, bump := s.resolver.UserProfile(user)
	now := s.now().Unix()

	var profile *models.UserProfile
	err := s.store.Update(ctx, func(tx *ledger.Tx) error {
		existing, err := tx.Profile(profileAddr)
		switch {
		case err == nil && existing.Activated:
			return ErrAlreadyActivated
		case err != nil && !errors.Is(err, ledger.ErrNotFound):
			return err
		}

		if s.params.ActivationFee > 0 {
			if err := s.creditAdmin(tx, s.params.ActivationFee); err != nil {
				return err
			}
			err := tx.AppendTransfer(&models.Transfer{
				Kind:      models.TransferActivationFee,
				From:      user,
				To:        s.params.AdminWallet,
				Amount:    s.params.ActivationFee,
				Timestamp: now,
			})
			if err != nil {
				return err
			}
		}

		profile = &models.UserProfile{
			Address:     profileAddr,
			User:        user,
			Activated:   true,
			ActivatedAt: now,
			Bump:        bump,
		}
		return tx.PutProfile(profile)
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("User %s activated", user)
	return profile, nil
}

// Profile returns the profile of user.
func (s *LotteryService) Profile(ctx context.Context, user address.Address) (*models.UserProfile, error) {
	profileAddr, _ := s.resolver.UserProfile(user)
	var p *models.UserProfile
	err := s.store.View(ctx, func(tx *ledger.Tx) error {
		var err error
		p, err = tx.Profile(profileAddr)
		return err
	})
	return p, err
}

// Round returns round n.
func (s *LotteryService) Round(ctx context.Context, n uint64) (*models.Round, error) {
	roundAddr, _ := s.resolver.Round(n)
	var r *models.Round
	err := s.store.View(ctx, func(tx *ledger.Tx) error {
		var err error
		r, err = tx.Round(roundAddr)
		return err
	})
	return r, err
}

// CurrentRound returns the number buyers should target: the highest Active
// round, or the round after the latest one when none is Active. The round
// itself is nil when it does not exist yet.
func (s *LotteryService) CurrentRound(ctx context.Context) (uint64, *models.Round, error) {
	var (
		number uint64
		round  *models.Round
	)
	err := s.store.View(ctx, func(tx *ledger.Tx) error {
		r, err := tx.ActiveRound()
		if err == nil {
			number, round = r.Number, r
			return nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}
		latest, _ := tx.LatestRoundNumber()
		number = latest + 1
		return nil
	})
	return number, round, err
}

// Position returns the ticket position stored at addr.
func (s *LotteryService) Position(ctx context.Context, addr address.Address) (*models.TicketPosition, error) {
	var p *models.TicketPosition
	err := s.store.View(ctx, func(tx *ledger.Tx) error {
		var err error
		p, err = tx.Position(addr)
		return err
	})
	return p, err
}

// Vault returns the vault of round n. A round without sales has an empty
// vault.
func (s *LotteryService) Vault(ctx context.Context, n uint64) (*models.Vault, error) {
	var v *models.Vault
	err := s.store.View(ctx, func(tx *ledger.Tx) error {
		var err error
		v, err = s.loadVault(tx, n)
		return err
	})
	return v, err
}

// FeeSink returns the total journaled to the admin wallet.
func (s *LotteryService) FeeSink(ctx context.Context) (uint64, error) {
	var total uint64
	err := s.store.View(ctx, func(tx *ledger.Tx) error {
		total = tx.FeeSink()
		return nil
	})
	return total, err
}

// Transfers returns journal entries after the given sequence number.
func (s *LotteryService) Transfers(ctx context.Context, after uint64, limit int) ([]models.Transfer, error) {
	var out []models.Transfer
	err := s.store.View(ctx, func(tx *ledger.Tx) error {
		var err error
		out, err = tx.Transfers(after, limit)
		return err
	})
	return out, err
}
