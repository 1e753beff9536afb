package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()

	newPipeline := func(api *fakeAPI, loader *fakeLoader, rec *fakeRecorder) *Pipeline {
		return NewPipeline(
			NewExtractor(api, DefaultExtractOptions(), nil),
			NewTransformer(nil),
			loader,
			rec,
			nil,
		)
	}

	t.Run("Success", func(t *testing.T) {
		loader := &fakeLoader{result: &models.LoadResult{Artists: 1, TopTracks: 3, Committed: models.Groups}}
		rec := &fakeRecorder{}

		var phases []Phase
		p := newPipeline(populatedAPI(), loader, rec).WithReporter(func(u ProgressUpdate) { phases = append(phases, u.Phase) })

		run, err := p.Run(ctx, shared.WindowMedium)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if run.Status != models.RunSucceeded || run.FinishedAt == nil || run.Error != nil {
			t.Errorf("unexpected run %+v", run)
		}
		if run.Result.Total() != 4 {
			t.Errorf("expected load result on run, got %+v", run.Result)
		}
		if len(loader.batches) != 1 {
			t.Fatalf("expected one load, got %d", len(loader.batches))
		}
		if len(rec.started) != 1 || len(rec.finished) != 1 || rec.started[0].ID != rec.finished[0].ID {
			t.Errorf("run should be started and finished once: %+v / %+v", rec.started, rec.finished)
		}
		if rec.started[0].Status != models.RunRunning {
			t.Errorf("run should start as running, got %s", rec.started[0].Status)
		}
		if phases[len(phases)-1] != LoadBatch || phases[len(phases)-2] != TransformBatch {
			t.Errorf("unexpected phase sequence %v", phases)
		}
	})

	t.Run("Extract Failure Skips Later Stages", func(t *testing.T) {
		api := populatedAPI()
		api.failOn = "profile"
		loader := &fakeLoader{}
		rec := &fakeRecorder{}

		run, err := newPipeline(api, loader, rec).Run(ctx, shared.WindowShort)
		if err == nil {
			t.Fatal("expected error")
		}
		if len(loader.batches) != 0 {
			t.Error("loader must not run after a failed extraction")
		}
		if run.Status != models.RunFailed || run.Error == nil {
			t.Errorf("expected failed run, got %+v", run)
		}
		if len(rec.finished) != 1 || rec.finished[0].Status != models.RunFailed {
			t.Errorf("failed run should be recorded: %+v", rec.finished)
		}
	})

	t.Run("Malformed Data Skips Load", func(t *testing.T) {
		api := populatedAPI()
		api.profile = nil
		loader := &fakeLoader{}

		_, err := newPipeline(api, loader, &fakeRecorder{}).Run(ctx, shared.WindowShort)
		if !errors.Is(err, shared.ErrMalformedData) {
			t.Fatalf("expected ErrMalformedData, got %v", err)
		}
		if len(loader.batches) != 0 {
			t.Error("loader must not run after a failed transform")
		}
	})

	t.Run("Partial Load Is Reported", func(t *testing.T) {
		loadErr := &shared.LoadError{Group: models.GroupTopArtists, Err: errors.New("disk full")}
		loader := &fakeLoader{
			result: &models.LoadResult{Artists: 1, TopTracks: 3, Committed: []string{models.GroupArtists, models.GroupTopTracks}},
			err:    loadErr,
		}

		run, err := newPipeline(populatedAPI(), loader, &fakeRecorder{}).Run(ctx, shared.WindowShort)
		if !errors.Is(err, shared.ErrLoadFailed) {
			t.Fatalf("expected ErrLoadFailed, got %v", err)
		}
		if len(run.Result.Committed) != 2 {
			t.Errorf("committed groups should be kept on the run: %+v", run.Result)
		}
	})
}
