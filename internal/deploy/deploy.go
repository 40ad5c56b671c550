// Package deploy creates the Collection and Marketplace contract state for a
// network profile. Deploying is idempotent: a ledger that already holds the
// contracts for the same profile is left untouched.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nomadhouse/nomadhouse/internal/network"
	"github.com/nomadhouse/nomadhouse/internal/storage"
)

// Collection name and symbol
const (
	CollectionName   = "NomadHouse"
	CollectionSymbol = "NMH"
)

// ErrNetworkMismatch is returned when the ledger was deployed from a different profile
var ErrNetworkMismatch = errors.New("ledger was deployed for a different network")

// Store is the storage interface required by deploy
type Store interface {
	Update(ctx context.Context, fn func(tx storage.Tx) error) error
}

// Result describes the deployed contracts
type Result struct {
	Network     string
	Owner       common.Address
	Collection  common.Address
	Marketplace common.Address
	Created     bool
}

// Deploy writes the initial Collection state, then the Marketplace state
// pointing at it, unless they already exist.
func Deploy(ctx context.Context, store Store, params *network.Params, logger *slog.Logger) (*Result, error) {
	res := &Result{
		Network:     params.Name,
		Owner:       params.Owner,
		Collection:  params.CollectionAddress(),
		Marketplace: params.MarketplaceAddress(),
	}

	err := store.Update(ctx, func(tx storage.Tx) error {
		existing, err := tx.GetCollection(ctx)
		switch {
		case err == nil:
			if existing.Address != res.Collection {
				return fmt.Errorf("%w: collection at %s, profile %s expects %s",
					ErrNetworkMismatch, existing.Address.Hex(), params.Name, res.Collection.Hex())
			}
			return nil
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("reading collection: %w", err)
		}

		if err := tx.PutCollection(ctx, &storage.CollectionState{
			Address:        res.Collection,
			Owner:          params.Owner,
			Name:           CollectionName,
			Symbol:         CollectionSymbol,
			Paused:         true,
			TokenURI:       params.TokenURI,
			TitleSearchURI: params.TitleSearchURI,
			Oracle:         params.Oracle,
			LinkToken:      params.LinkToken,
			OracleFee:      params.OracleFee,
			JobID:          params.JobID,
			NextDeedID:     1,
		}); err != nil {
			return fmt.Errorf("deploying collection: %w", err)
		}

		if err := tx.PutMarket(ctx, &storage.MarketState{
			Address:         res.Marketplace,
			Owner:           params.Owner,
			NFT:             res.Collection,
			FeePercent:      params.FeePercent,
			CollectableFees: new(big.Int),
			Balance:         new(big.Int),
		}); err != nil {
			return fmt.Errorf("deploying marketplace: %w", err)
		}

		res.Created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Created {
		logger.Info("contracts deployed",
			"network", params.Name,
			"owner", params.Owner.Hex(),
			"collection", res.Collection.Hex(),
			"marketplace", res.Marketplace.Hex(),
			"fee_percent", params.FeePercent,
			"oracle", params.Oracle.Hex(),
			"compiler", params.Compiler,
		)
	} else {
		logger.Debug("contracts already deployed",
			"network", params.Name,
			"collection", res.Collection.Hex(),
			"marketplace", res.Marketplace.Hex(),
		)
	}
	return res, nil
}
