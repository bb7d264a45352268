package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/auth"
	"lottery-ledger/internal/backup"
	"lottery-ledger/internal/client"
	"lottery-ledger/internal/ledger"
	"lottery-ledger/internal/services"

	"github.com/google/logger"
	"github.com/urfave/cli"
)

var deriveCommand = cli.Command{
	Name:      "derive",
	Usage:     "print a derived ledger address",
	ArgsUsage: "round N | vault N | profile WALLET | ticket ROUND_ADDRESS BUYER START",
	Action:    derive,
}

var buyCommand = cli.Command{
	Name:  "buy",
	Usage: "buy tickets, retrying once on the next round if the target expired",
	Flags: []cli.Flag{
		cli.Uint64Flag{Name: "round, r", Usage: "round number (default: current round)"},
		cli.UintFlag{Name: "count, n", Value: 1, Usage: "number of tickets"},
	},
	Action: buy,
}

var finalizeCommand = cli.Command{
	Name:  "finalize",
	Usage: "finalize a round once its deadline passed",
	Flags: []cli.Flag{
		cli.Uint64Flag{Name: "round, r", Usage: "round number (default: current round)"},
		cli.BoolFlag{Name: "watch, w", Usage: "keep finalizing the current round as deadlines pass"},
		cli.DurationFlag{Name: "interval", Value: 2 * time.Second, Usage: "poll interval with --watch"},
	},
	Action: finalize,
}

var claimCommand = cli.Command{
	Name:  "claim",
	Usage: "claim the prize of an ended round",
	Flags: []cli.Flag{
		cli.Uint64Flag{Name: "round, r", Usage: "round number"},
		cli.StringFlag{Name: "position, p", Usage: "address of the winning ticket position"},
	},
	Action: claim,
}

var snapshotCommand = cli.Command{
	Name:  "snapshot",
	Usage: "copy the ledger database to a file or the configured bucket",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "out, o", Usage: "output file"},
		cli.BoolFlag{Name: "upload", Usage: "upload to the configured backup bucket"},
	},
	Action: snapshot,
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func derive(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	program, err := cfg.Program()
	if err != nil {
		return err
	}
	r := address.NewResolver(program)
	args := c.Args()

	var (
		addr address.Address
		bump uint8
	)
	switch args.First() {
	case "round", "vault":
		n, err := strconv.ParseUint(args.Get(1), 10, 64)
		if err != nil {
			return fmt.Errorf("round number: %w", err)
		}
		if args.First() == "round" {
			addr, bump = r.Round(n)
		} else {
			addr, bump = r.Vault(n)
		}
	case "profile":
		user, err := address.Parse(args.Get(1))
		if err != nil {
			return err
		}
		addr, bump = r.UserProfile(user)
	case "ticket":
		round, err := address.Parse(args.Get(1))
		if err != nil {
			return err
		}
		buyer, err := address.Parse(args.Get(2))
		if err != nil {
			return err
		}
		start, err := strconv.ParseUint(args.Get(3), 10, 64)
		if err != nil {
			return fmt.Errorf("start index: %w", err)
		}
		addr, bump = r.TicketPosition(round, buyer, start)
	default:
		return cli.ShowCommandHelp(c, "derive")
	}
	return printJSON(map[string]any{"address": addr, "bump": bump})
}

func keygen(c *cli.Context) error {
	s, err := auth.GenerateSigner()
	if err != nil {
		return err
	}
	secret, err := s.SecretHex()
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"address": s.Address().String(), "secret": secret})
}

func newClient(c *cli.Context, needKey bool) (*client.Client, error) {
	var signer *auth.Signer
	if key := c.GlobalString("key"); key != "" {
		var err error
		if signer, err = auth.LoadSigner(key); err != nil {
			return nil, err
		}
	} else if needKey {
		return nil, errors.New("a wallet key is required (--key or LOTTERY_SECRET_KEY)")
	}
	return client.New(c.GlobalString("server"), signer), nil
}

func targetRound(ctx context.Context, c *cli.Context, cl *client.Client) (uint64, error) {
	if n := c.Uint64("round"); n > 0 {
		return n, nil
	}
	n, _, err := cl.CurrentRound(ctx)
	return n, err
}

func activate(c *cli.Context) error {
	cl, err := newClient(c, true)
	if err != nil {
		return err
	}
	profile, err := cl.Activate(context.Background())
	if err != nil {
		return err
	}
	return printJSON(profile)
}

func buy(c *cli.Context) error {
	ctx := context.Background()
	cl, err := newClient(c, true)
	if err != nil {
		return err
	}
	count := c.Uint("count")
	if count == 0 || count > 255 {
		return services.ErrInvalidTicketCount
	}
	n, err := targetRound(ctx, c, cl)
	if err != nil {
		return err
	}
	receipt, err := services.DefaultRetryPolicy().Buy(ctx, cl, cl.Signer.Address(), n, uint8(count))
	if err != nil {
		return err
	}
	return printJSON(receipt)
}

func finalize(c *cli.Context) error {
	ctx := context.Background()
	cl, err := newClient(c, false)
	if err != nil {
		return err
	}
	if !c.Bool("watch") {
		n, err := targetRound(ctx, c, cl)
		if err != nil {
			return err
		}
		round, err := cl.Finalize(ctx, n)
		if err != nil {
			return err
		}
		return printJSON(round)
	}

	ticker := time.NewTicker(c.Duration("interval"))
	defer ticker.Stop()
	for range ticker.C {
		n, round, err := cl.CurrentRound(ctx)
		if err != nil {
			logger.Warningf("Current round lookup failed: %v", err)
			continue
		}
		if round == nil || time.Now().Unix() < round.EndTimestamp {
			continue
		}
		round, err = cl.Finalize(ctx, n)
		switch {
		case errors.Is(err, services.ErrRoundNotExpired):
		case err != nil:
			logger.Warningf("Finalize round %d failed: %v", n, err)
		default:
			logger.Infof("Round %d is now %s", n, round.Status)
		}
	}
	return nil
}

func claim(c *cli.Context) error {
	cl, err := newClient(c, true)
	if err != nil {
		return err
	}
	position, err := address.Parse(c.String("position"))
	if err != nil {
		return fmt.Errorf("position: %w", err)
	}
	payout, err := cl.Claim(context.Background(), c.Uint64("round"), position)
	if err != nil {
		return err
	}
	return printJSON(payout)
}

func snapshot(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg.DataPath, cfg.DBTimeout.Duration)
	if err != nil {
		return err
	}
	defer store.Close()

	if c.Bool("upload") {
		if cfg.Backup.Bucket == "" {
			return errors.New("backup.bucket is not configured")
		}
		ctx := context.Background()
		s3Client, err := backup.NewS3Client(ctx, cfg.Backup)
		if err != nil {
			return err
		}
		key, err := backup.NewUploader(s3Client, cfg.Backup.Bucket, cfg.Backup.Prefix).Upload(ctx, store, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	}

	out := c.String("out")
	if out == "" {
		return errors.New("either --out or --upload is required")
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	n, err := store.WriteSnapshot(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	logger.Infof("Wrote %d bytes to %s", n, out)
	return nil
}
