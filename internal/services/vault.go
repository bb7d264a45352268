package services

import (
	"errors"
	"math/bits"

	"lottery-ledger/internal/ledger"
	"lottery-ledger/internal/models"
)

func addU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

func mulU64(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrMathOverflow
	}
	return lo, nil
}

// loadVault returns the vault of round n, or an empty one if the round has
// not accrued anything yet.
func (s *LotteryService) loadVault(tx *ledger.Tx, n uint64) (*models.Vault, error) {
	addr, bump := s.resolver.Vault(n)
	v, err := tx.Vault(addr)
	if errors.Is(err, ledger.ErrNotFound) {
		return &models.Vault{Address: addr, RoundNumber: n, Bump: bump}, nil
	}
	return v, err
}

func (s *LotteryService) creditAdmin(tx *ledger.Tx, amount uint64) error {
	total, err := addU64(tx.FeeSink(), amount)
	if err != nil {
		return err
	}
	return tx.PutFeeSink(total)
}

// creditPurchase splits the cost of count tickets between the round vault
// and the fee sink and journals both legs from base. It returns the total
// charged.
func (s *LotteryService) creditPurchase(tx *ledger.Tx, round *models.Round, base models.Transfer, count uint64) (uint64, error) {
	vaultAmount, err := mulU64(s.params.TicketPrice-s.params.ProtocolFee, count)
	if err != nil {
		return 0, err
	}
	feeAmount, err := mulU64(s.params.ProtocolFee, count)
	if err != nil {
		return 0, err
	}
	cost, err := addU64(vaultAmount, feeAmount)
	if err != nil {
		return 0, err
	}

	vault, err := s.loadVault(tx, round.Number)
	if err != nil {
		return 0, err
	}
	if vault.Balance, err = addU64(vault.Balance, vaultAmount); err != nil {
		return 0, err
	}
	if err := tx.PutVault(vault); err != nil {
		return 0, err
	}

	vaultLeg := base
	vaultLeg.Kind = models.TransferTicketVault
	vaultLeg.To = vault.Address
	vaultLeg.Amount = vaultAmount
	if err := tx.AppendTransfer(&vaultLeg); err != nil {
		return 0, err
	}

	if feeAmount > 0 {
		if err := s.creditAdmin(tx, feeAmount); err != nil {
			return 0, err
		}
		feeLeg := base
		feeLeg.Kind = models.TransferTicketFee
		feeLeg.To = s.params.AdminWallet
		feeLeg.Amount = feeAmount
		if err := tx.AppendTransfer(&feeLeg); err != nil {
			return 0, err
		}
	}
	return cost, nil
}

// drainVault pays the whole balance of the round vault to winner in one
// transfer and zeroes the vault.
func (s *LotteryService) drainVault(tx *ledger.Tx, round *models.Round, payout models.Transfer) (uint64, error) {
	vault, err := s.loadVault(tx, round.Number)
	if err != nil {
		return 0, err
	}
	if vault.Balance == 0 {
		return 0, ErrNoPrize
	}
	amount := vault.Balance
	vault.Balance = 0
	if err := tx.PutVault(vault); err != nil {
		return 0, err
	}

	payout.Kind = models.TransferPrizePayout
	payout.From = vault.Address
	payout.Amount = amount
	if err := tx.AppendTransfer(&payout); err != nil {
		return 0, err
	}
	return amount, nil
}
