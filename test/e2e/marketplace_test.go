//go:build e2e

package e2e

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadhouse/nomadhouse/internal/oracle"
	"github.com/nomadhouse/nomadhouse/pkg/client"
)

const oneEther = "1000000000000000000"

// TestDeedLifecycle walks a title from verification through sale and payouts,
// with the reference oracle answering requests against the title search stub.
func TestDeedLifecycle(t *testing.T) {
	ctx := context.Background()
	owner := clientFor(t, "lifecycle-owner", ownerAddr)
	seller := clientFor(t, "lifecycle-seller", sellerAddr)
	buyer := clientFor(t, "lifecycle-buyer", buyerAddr)
	oracleClient := clientFor(t, "lifecycle-oracle", oracleAddr)

	market, err := owner.Market(ctx)
	require.NoError(t, err)
	assert.Equal(t, testCtx.Params.MarketplaceAddress().Hex(), market.Address)
	assert.Equal(t, uint64(2), market.FeePercent)

	t.Run("owner configures the collection", func(t *testing.T) {
		require.NoError(t, owner.SetTitleSearchURI(ctx, testCtx.TitleSearch.URL+"/"))
		require.NoError(t, owner.SetMarketplace(ctx, market.Address))
		require.NoError(t, owner.UnpauseCollection(ctx))
		require.NoError(t, owner.AuthorizeWallet(ctx, sellerAddr.Hex()))

		ok, err := owner.IsAuthorized(ctx, sellerAddr.Hex())
		require.NoError(t, err)
		assert.True(t, ok)

		err = seller.PauseCollection(ctx)
		assertHTTPError(t, err, "FORBIDDEN")
	})

	t.Run("title verification through the oracle", func(t *testing.T) {
		verified, err := seller.VerifyTitle(ctx, "lot-7.json")
		require.NoError(t, err)
		assert.Equal(t, client.StatusPending, verified.Status)

		rejected, err := seller.VerifyTitle(ctx, "unverified-lot-8.json")
		require.NoError(t, err)

		w := oracle.New(oracleClient, oracle.Config{Workers: 2, RetryInterval: time.Millisecond},
			slog.New(slog.NewTextHandler(io.Discard, nil)))
		results, err := w.Poll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, results[oracle.ResultFulfilled])
		assert.Equal(t, 1, results[oracle.ResultRejected])

		req, err := seller.GetRequest(ctx, verified.ID)
		require.NoError(t, err)
		assert.Equal(t, client.StatusFulfilled, req.Status)

		req, err = seller.GetRequest(ctx, rejected.ID)
		require.NoError(t, err)
		assert.Equal(t, client.StatusRejected, req.Status)

		// Only the oracle may answer
		_, err = seller.Fulfill(ctx, verified.ID, client.Fulfillment{Owner: sellerAddr.Hex(), Fractionalization: 3, Verified: true})
		require.Error(t, err)
	})

	t.Run("mint deeds", func(t *testing.T) {
		title, err := seller.GetTitle(ctx, "lot-7.json")
		require.NoError(t, err)
		assert.Equal(t, sellerAddr.Hex(), title.Owner)
		assert.Equal(t, uint64(3), title.Fractionalization)

		ids, err := seller.MintDeeds(ctx, "lot-7.json", 2)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2}, ids)

		_, err = seller.MintDeeds(ctx, "lot-7.json", 2)
		assertHTTPError(t, err, "QUOTA_EXCEEDED")

		_, err = buyer.MintDeeds(ctx, "lot-7.json", 1)
		assertHTTPError(t, err, "FORBIDDEN")
	})

	t.Run("deed queries", func(t *testing.T) {
		deed, err := buyer.GetDeed(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, sellerAddr.Hex(), deed.Owner)

		_, err = buyer.GetDeed(ctx, 99)
		require.Error(t, err)
		assert.True(t, client.IsNotFound(err))
		assert.Contains(t, err.Error(), "Deed does not exist")

		exists, err := buyer.DeedExists(ctx, 99)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	var listingID uint64
	t.Run("post and buy", func(t *testing.T) {
		l, err := seller.PostListing(ctx, client.PostRequest{TokenID: 1, Price: oneEther})
		require.NoError(t, err)
		assert.Equal(t, "Active", l.State)
		listingID = l.ID

		_, err = buyer.Buy(ctx, listingID, "999")
		assertHTTPError(t, err, "PAYMENT_MISMATCH")

		l, err = buyer.Buy(ctx, listingID, oneEther)
		require.NoError(t, err)
		assert.Equal(t, "Sold", l.State)
		assert.Equal(t, buyerAddr.Hex(), l.Buyer)

		deed, err := buyer.GetDeed(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, buyerAddr.Hex(), deed.Owner)

		_, err = buyer.CancelListing(ctx, listingID)
		require.Error(t, err)
	})

	t.Run("payouts", func(t *testing.T) {
		p, err := seller.Collect(ctx, listingID, 0)
		require.NoError(t, err)
		assert.Equal(t, "980000000000000000", p.Amount)

		_, err = seller.Collect(ctx, listingID, 0)
		assertHTTPError(t, err, "CONFLICT")

		_, err = seller.CollectFees(ctx, 0)
		assertHTTPError(t, err, "FORBIDDEN")

		p, err = owner.CollectFees(ctx, 2300)
		require.NoError(t, err)
		assert.Equal(t, "20000000000000000", p.Amount)

		bal, err := seller.Balance(ctx, sellerAddr.Hex())
		require.NoError(t, err)
		assert.Equal(t, "980000000000000000", bal)

		m, err := owner.Market(ctx)
		require.NoError(t, err)
		assert.Equal(t, "0", m.Balance)
		assert.Equal(t, "0", m.CollectableFees)
	})

	t.Run("listing page", func(t *testing.T) {
		page, err := buyer.GetListings(ctx, listingID, 10)
		require.NoError(t, err)
		require.NotEmpty(t, page.Data)
		assert.Equal(t, listingID, page.Data[0].ID)
		assert.Equal(t, "Sold", page.Data[0].State)
	})
}

// TestListingStateChanges covers pause, unpause and cancel by the seller
func TestListingStateChanges(t *testing.T) {
	ctx := context.Background()
	owner := clientFor(t, "states-owner", ownerAddr)
	seller := clientFor(t, "states-seller", sellerAddr)

	require.NoError(t, owner.SetTitleSearchURI(ctx, testCtx.TitleSearch.URL+"/"))
	require.NoError(t, owner.AuthorizeWallet(ctx, sellerAddr.Hex()))
	if err := owner.UnpauseCollection(ctx); err != nil {
		assertHTTPError(t, err, "CONFLICT")
	}

	req, err := seller.VerifyTitle(ctx, "lot-20.json")
	require.NoError(t, err)
	_, err = clientFor(t, "states-oracle", oracleAddr).Fulfill(ctx, req.ID,
		client.Fulfillment{Owner: sellerAddr.Hex(), Fractionalization: 1, Verified: true})
	require.NoError(t, err)
	ids, err := seller.MintDeeds(ctx, "lot-20.json", 1)
	require.NoError(t, err)

	paused := false
	l, err := seller.PostListing(ctx, client.PostRequest{TokenID: ids[0], Price: oneEther, StartsActive: &paused})
	require.NoError(t, err)
	assert.Equal(t, "Paused", l.State)

	_, err = seller.PauseListing(ctx, l.ID)
	assertHTTPError(t, err, "CONFLICT")

	l, err = seller.UnpauseListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Active", l.State)

	l, err = seller.CancelListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cancelled", l.State)

	deed, err := seller.GetDeed(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, sellerAddr.Hex(), deed.Owner, "deed stays with the seller")

	resp, err := http.Get(testCtx.TestServer.URL + "/api/v1/marketplace/listings/0")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "listing 0 is the sentinel")
}
