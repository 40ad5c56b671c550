//go:build e2e

package e2e

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
)

var testCtx *TestContext

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(run(m))
}

// run brings up Postgres, the title-search stub and the ledger server,
// runs the suite and tears everything down in reverse order.
func run(m *testing.M) int {
	ctx := context.Background()
	testCtx = &TestContext{}

	var err error
	testCtx.PostgresContainer, testCtx.ConnString, err = setupPostgresE(ctx)
	if err != nil {
		log.Printf("e2e: postgres: %v", err)
		return 1
	}
	defer func() {
		if err := testCtx.PostgresContainer.Terminate(ctx); err != nil {
			log.Printf("e2e: terminating postgres: %v", err)
		}
	}()

	testCtx.TitleSearch = startTitleSearch()
	defer testCtx.TitleSearch.Close()

	testCtx.TestServer, testCtx.Store, testCtx.Params, err = startServerE(testCtx.ConnString)
	if err != nil {
		log.Printf("e2e: server: %v", err)
		return 1
	}
	defer testCtx.Store.Close()
	defer testCtx.TestServer.Close()

	log.Printf("e2e: ledger %s on %s, title search on %s",
		testCtx.Params.Name, testCtx.TestServer.URL, testCtx.TitleSearch.URL)
	return m.Run()
}
