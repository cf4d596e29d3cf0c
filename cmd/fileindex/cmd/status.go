package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fileindex/internal/config"
	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/internal/instance"
	"github.com/Aman-CERP/fileindex/internal/store"
	"github.com/Aman-CERP/fileindex/internal/ui"
)

func newStatusCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index size, embedding spaces and watcher state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := collectStatus(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			r := ui.NewStatusRenderer(cmd.OutOrStdout(), false)
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// collectStatus reads the stores without creating them when they are absent.
func collectStatus(ctx context.Context, cfg *config.Config) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		DataDir:       cfg.Storage.DataDir,
		Categories:    map[string]int{},
		Embedder:      embedderName(cfg.Embeddings),
		WatcherStatus: "stopped",
	}

	st, err := instance.Probe(cfg.Storage.DataDir)
	if err != nil {
		return info, fierrors.InternalError("failed to probe watcher", err)
	}
	if st.Running {
		info.WatcherStatus = "running"
		info.WatcherPID = st.PID
	}

	opts := store.Options{Driver: cfg.Storage.Driver, CacheMB: cfg.Storage.CacheMB}

	if path := cfg.MetadataDBPath(); exists(path) {
		meta, err := store.NewMetadataStore(path, opts)
		if err != nil {
			return info, fierrors.New(fierrors.ErrCodeStoreOpen, "failed to open metadata store", err).
				WithDetail("path", path)
		}
		defer func() { _ = meta.Close() }()

		if info.Files, err = meta.Count(ctx); err != nil {
			return info, fierrors.StoreError("metadata", "count", err)
		}
		if info.Categories, err = meta.CountByCategory(ctx); err != nil {
			return info, fierrors.StoreError("metadata", "count", err)
		}
		if info.LastIndexed, err = meta.LastIndexed(ctx); err != nil {
			return info, fierrors.StoreError("metadata", "last indexed", err)
		}
		info.MetadataSize = dbSize(path)
	}

	if path := cfg.VectorDBPath(); exists(path) {
		vectors, err := store.NewVectorStore(path, opts)
		if err != nil {
			return info, fierrors.New(fierrors.ErrCodeStoreOpen, "failed to open vector store", err).
				WithDetail("path", path)
		}
		defer func() { _ = vectors.Close() }()

		spaces, err := vectors.Spaces(ctx)
		if err != nil {
			return info, fierrors.StoreError("vectors", "spaces", err)
		}
		for _, sp := range spaces {
			info.Spaces = append(info.Spaces, ui.SpaceStatus{Space: sp.Space, Dim: sp.Dim, Vectors: sp.Count})
		}
		info.VectorSize = dbSize(path)
	}

	info.TotalSize = info.MetadataSize + info.VectorSize
	return info, nil
}

func embedderName(cfg config.EmbeddingsConfig) string {
	if cfg.Provider == config.ProviderOllama {
		return "ollama/" + cfg.Model
	}
	return cfg.Provider
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// dbSize counts the database file plus its write-ahead log.
func dbSize(path string) int64 {
	var total int64
	for _, p := range []string{path, path + "-wal"} {
		if fi, err := os.Stat(p); err == nil {
			total += fi.Size()
		}
	}
	return total
}
