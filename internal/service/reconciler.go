package service

import (
	"context"
	"log/slog"
	"strings"

	"propertyhub/internal/featureflags"
	"propertyhub/internal/middleware"
	"propertyhub/internal/models"
	"propertyhub/internal/observability"
	"propertyhub/internal/storage"

	"golang.org/x/sync/errgroup"
)

const DefaultUploadConcurrency = 4

// Orphan reasons recorded on propertyhub_orphaned_objects_total.
const (
	orphanUploadAborted = "upload_aborted"
	orphanSaveFailed    = "save_failed"
)

// ReconcileInput carries the client's three image assertions against the stored list.
type ReconcileInput struct {
	Current []string
	// Kept is only applied when KeptSupplied is true; an empty supplied list keeps nothing.
	Kept         []string
	KeptSupplied bool
	Deleted      []string
	Files        []storage.File
	// AdminID selects the admin's bucket for percentage rollouts.
	AdminID uint
}

// ImagePlan is the outcome of a reconciliation.
type ImagePlan struct {
	// Images is the list to persist.
	Images []string
	// Uploaded holds locators written to the store during this reconciliation.
	Uploaded []string
	// ToDelete holds locators that left the list and should be purged after the save.
	ToDelete []string
}

// Reconciler computes a property's next image list and talks to the object store.
type Reconciler struct {
	store       storage.ObjectStore
	flags       *featureflags.Manager
	concurrency int
}

func NewReconciler(store storage.ObjectStore, flags *featureflags.Manager, concurrency int) *Reconciler {
	if concurrency <= 0 {
		concurrency = DefaultUploadConcurrency
	}
	return &Reconciler{store: store, flags: flags, concurrency: concurrency}
}

// Reconcile uploads in.Files and returns the plan. On an upload failure the
// returned plan still lists what did get uploaded, alongside a RemoteStoreError.
func (r *Reconciler) Reconcile(ctx context.Context, in ReconcileInput) (*ImagePlan, error) {
	deleted := toSet(cleanLocators(in.Deleted))

	base := make([]string, 0, len(in.Current))
	seen := make(map[string]struct{}, len(in.Current))
	var toDelete []string
	for _, loc := range in.Current {
		if _, dup := seen[loc]; dup {
			continue
		}
		seen[loc] = struct{}{}
		if _, gone := deleted[loc]; gone {
			toDelete = append(toDelete, loc)
			continue
		}
		base = append(base, loc)
	}

	if in.KeptSupplied {
		kept := toSet(cleanLocators(in.Kept))
		filtered := base[:0]
		for _, loc := range base {
			if _, ok := kept[loc]; ok {
				filtered = append(filtered, loc)
			}
		}
		base = filtered
	}

	uploaded, err := r.UploadAll(ctx, in.AdminID, in.Files)

	plan := &ImagePlan{Uploaded: uploaded}
	inPlan := toSet(base)
	for _, loc := range uploaded {
		if _, ok := inPlan[loc]; ok {
			continue
		}
		inPlan[loc] = struct{}{}
		base = append(base, loc)
	}
	plan.Images = base

	if err != nil {
		return plan, err
	}

	for _, loc := range toDelete {
		if _, still := inPlan[loc]; !still {
			plan.ToDelete = append(plan.ToDelete, loc)
		}
	}
	return plan, nil
}

// UploadAll uploads files in order. Sequential uploads stop at the first failure;
// parallel uploads finish every file. Either way the successful locators are
// returned in file order and a failure is reported as a RemoteStoreError.
// adminID decides the parallel_uploads flag for percentage rollouts.
func (r *Reconciler) UploadAll(ctx context.Context, adminID uint, files []storage.File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var (
		uploaded []string
		failIdx  = -1
		failErr  error
	)
	if r.flags.Enabled(featureflags.ParallelUploads, adminID) && len(files) > 1 {
		uploaded, failIdx, failErr = r.uploadParallel(ctx, files)
	} else {
		uploaded, failIdx, failErr = r.uploadSequential(ctx, files)
	}

	if failErr == nil {
		return uploaded, nil
	}

	middleware.Logger.WarnContext(ctx, "Image upload failed",
		slog.Int("index", failIdx),
		slog.String("filename", files[failIdx].Filename),
		slog.String("error", failErr.Error()),
	)
	r.recordOrphans(ctx, uploaded, orphanUploadAborted)
	return uploaded, models.NewRemoteStoreError("Failed to upload images", failErr)
}

func (r *Reconciler) uploadSequential(ctx context.Context, files []storage.File) ([]string, int, error) {
	uploaded := make([]string, 0, len(files))
	for i, f := range files {
		loc, err := r.store.Upload(ctx, f)
		if err != nil {
			return uploaded, i, err
		}
		uploaded = append(uploaded, loc)
	}
	return uploaded, -1, nil
}

func (r *Reconciler) uploadParallel(ctx context.Context, files []storage.File) ([]string, int, error) {
	locators := make([]string, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, f := range files {
		g.Go(func() error {
			locators[i], errs[i] = r.store.Upload(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	uploaded := make([]string, 0, len(files))
	failIdx := -1
	for i := range files {
		if errs[i] != nil {
			if failIdx < 0 {
				failIdx = i
			}
			continue
		}
		uploaded = append(uploaded, locators[i])
	}
	if failIdx >= 0 {
		return uploaded, failIdx, errs[failIdx]
	}
	return uploaded, -1, nil
}

// Purge deletes plan.ToDelete from the store. Failures are logged and counted,
// never returned. Returns the number of failed deletes.
func (r *Reconciler) Purge(ctx context.Context, plan *ImagePlan) int {
	if plan == nil {
		return 0
	}
	return r.DeleteAll(ctx, plan.ToDelete)
}

// DeleteAll removes every locator, best effort. Returns the number of failures.
func (r *Reconciler) DeleteAll(ctx context.Context, locators []string) int {
	failed := 0
	for _, loc := range locators {
		if err := r.store.Delete(ctx, loc); err != nil {
			failed++
			middleware.Logger.WarnContext(ctx, "Failed to delete image from store",
				slog.String("locator", loc),
				slog.String("error", err.Error()),
			)
		}
	}
	return failed
}

func (r *Reconciler) recordOrphans(ctx context.Context, locators []string, reason string) {
	if len(locators) == 0 {
		return
	}
	observability.OrphanedObjects.WithLabelValues(reason).Add(float64(len(locators)))
	for _, loc := range locators {
		middleware.Logger.WarnContext(ctx, "Orphaned image left in store",
			slog.String("locator", loc),
			slog.String("reason", reason),
		)
	}
}

// cleanLocators trims entries and drops blanks and the "null"/"undefined" sentinels
// some form clients send for empty values.
func cleanLocators(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		switch s {
		case "", "null", "undefined":
			continue
		}
		out = append(out, s)
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[s] = struct{}{}
	}
	return out
}
