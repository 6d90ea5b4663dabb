//go:build integration

package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/datastore/repository"
)

func TestMySQLManagerAgainstContainer(t *testing.T) {
	ctx := context.Background()

	ctr, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithDatabase("naskban"),
		tcmysql.WithUsername("naskban"),
		tcmysql.WithPassword("naskban"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Database.Type = conf.DatabaseMySQL
	settings.Database.MySQL = conf.MySQLSettings{
		Host:     host,
		Port:     port.Int(),
		Username: "naskban",
		Password: "naskban",
		Database: "naskban",
	}

	m, err := Open(settings, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.Initialize())
	assert.True(t, m.IsMySQL())

	db := m.DB()
	findings := repository.NewFindingRepository(db)
	require.NoError(t, findings.Create(ctx, &entities.PoemMatchFinding{GanjoorCatID: 5, BookID: 10, QueueTime: time.Now()}))
	err = findings.Create(ctx, &entities.PoemMatchFinding{GanjoorCatID: 5, BookID: 10, QueueTime: time.Now()})
	require.ErrorIs(t, err, repository.ErrDuplicateKey)

	links := repository.NewLinkRepository(db)
	link := &entities.GanjoorLink{GanjoorPostID: 1, BookID: 1, PageNumber: 1, SuggestedByID: "u", SuggestionDate: time.Now()}
	require.NoError(t, links.Create(ctx, link))
	// clientFoundRows keeps a no-op update from looking like a missing row.
	require.NoError(t, links.UpdateFields(ctx, link.ID, map[string]any{"synchronized": false}))
}
