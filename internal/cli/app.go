package cli

import (
	"context"
	"fmt"

	"github.com/pinesagetechnology/filemonitor/internal/blob"
	"github.com/pinesagetechnology/filemonitor/internal/blob/azure"
	"github.com/pinesagetechnology/filemonitor/internal/blob/localstub"
	"github.com/pinesagetechnology/filemonitor/internal/clock"
	"github.com/pinesagetechnology/filemonitor/internal/config"
	"github.com/pinesagetechnology/filemonitor/internal/constants"
	"github.com/pinesagetechnology/filemonitor/internal/datasource"
	"github.com/pinesagetechnology/filemonitor/internal/events"
	"github.com/pinesagetechnology/filemonitor/internal/logging"
	"github.com/pinesagetechnology/filemonitor/internal/store"
)

// coreServices bundles the single immutable set of collaborators every CLI
// command and the supervisor loop are built from — the teacher's
// constructor-injection style generalized to one struct instead of one
// per-command client build.
type coreServices struct {
	store       *store.Store
	cfg         *config.Service
	dataSources *datasource.Service
	uploader    blob.Uploader
	clock       clock.Clock
	bus         *events.Bus
	log         *logging.Logger
}

// bootstrap opens the store at dbPath, runs migrations, seeds default
// Configuration rows, and wires a blob.Uploader — Azure if a connection
// string is configured, the local filesystem stub otherwise so `serve`
// and the inspection commands never hard-fail for lack of cloud
// credentials in a dev environment.
func bootstrap(ctx context.Context, dbPath string) (*coreServices, error) {
	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	clk := clock.New()
	bus := events.NewBus(constants.EventBusDefaultBuffer)
	cfgSvc := config.New(st.Config, clk, constants.ConfigCacheTTLFloor, bus)

	if err := config.Bootstrap(ctx, cfgSvc); err != nil {
		st.Close()
		return nil, fmt.Errorf("seed default configuration: %w", err)
	}

	uploader, err := buildUploader(ctx, cfgSvc)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &coreServices{
		store:       st,
		cfg:         cfgSvc,
		dataSources: datasource.New(st.DataSource),
		uploader:    uploader,
		clock:       clk,
		bus:         bus,
		log:         logging.New("cli"),
	}, nil
}

func buildUploader(ctx context.Context, cfgSvc *config.Service) (blob.Uploader, error) {
	conn := cfgSvc.GetString(ctx, "Azure.StorageConnectionString", "")
	if conn == "" {
		return localstub.New("./.filemonitor-localstub")
	}
	backend, err := azure.New(conn)
	if err != nil {
		return nil, fmt.Errorf("build azure uploader: %w", err)
	}
	return backend, nil
}

func (c *coreServices) Close() {
	c.bus.Close()
	c.store.Close()
}
