// prune.go implements the Docker side of a cleanup: reclaiming space held
// by stopped containers, unused volumes and unused images.
//
// Prune calls run server-side; the daemon decides what is "unused". The
// janitor only shapes the decision through filters:
//   - images are pruned with dangling=false, so every image not used by a
//     container is a candidate, not only untagged layers
//   - images newer than the retention window (until=<N>h) are kept, so
//     base images pulled for recent builds stay warm
//   - an optional protective label excludes resources from every prune
package docker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types/filters"
	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/node-janitor/internal/model"
)

// PruneOptions controls a Docker cleanup run.
type PruneOptions struct {
	// KeepImagesUntil is the image retention window in hours. Must be > 0.
	KeepImagesUntil int

	// KeepLabel, if non-empty, is a label key. Any container, volume or
	// image carrying it is excluded from pruning via a label!= filter.
	KeepLabel string
}

// BuildPruneFilters returns the filter set for pruning the given resource.
// It is a pure function so the filter shape can be asserted in tests.
func BuildPruneFilters(resource model.Resource, opts PruneOptions) filters.Args {
	args := filters.NewArgs()

	if opts.KeepLabel != "" {
		// "label!=<key>" matches resources that do NOT carry the key,
		// which is exactly the set prune is allowed to touch.
		args.Add("label!", opts.KeepLabel)
	}

	if resource == model.ResourceImages {
		args.Add("dangling", "false")
		args.Add("until", strconv.Itoa(opts.KeepImagesUntil)+"h")
	}

	return args
}

// Cleanup prunes containers, volumes and images, in that order. Containers
// go first because a stopped container pins its volumes and image; pruning
// it first lets the later calls reclaim more.
//
// Each step logs the space it reclaimed. The first failing step aborts the
// sequence; reports for the steps that completed are still returned so the
// caller can account for the space that was freed.
func Cleanup(ctx context.Context, cli *Client, opts PruneOptions, log logrus.FieldLogger) ([]model.PruneReport, error) {
	if opts.KeepImagesUntil <= 0 {
		return nil, fmt.Errorf("invalid image retention window: %d hours", opts.KeepImagesUntil)
	}

	log.Info("starting docker cleanup")

	if err := cli.Ping(ctx); err != nil {
		return nil, err
	}

	reports := make([]model.PruneReport, 0, 3)

	// Step 1: stopped containers.
	cr, err := cli.inner.ContainersPrune(ctx, BuildPruneFilters(model.ResourceContainers, opts))
	if err != nil {
		return reports, wrapPruneError(model.ResourceContainers, err)
	}
	reports = append(reports, model.PruneReport{
		Resource:       model.ResourceContainers,
		ItemsDeleted:   len(cr.ContainersDeleted),
		SpaceReclaimed: cr.SpaceReclaimed,
	})
	log.WithField("reclaimed_bytes", cr.SpaceReclaimed).
		Infof("cleaned up stopped/stale containers, space reclaimed: %d bytes", cr.SpaceReclaimed)

	// Step 2: unused volumes.
	vr, err := cli.inner.VolumesPrune(ctx, BuildPruneFilters(model.ResourceVolumes, opts))
	if err != nil {
		return reports, wrapPruneError(model.ResourceVolumes, err)
	}
	reports = append(reports, model.PruneReport{
		Resource:       model.ResourceVolumes,
		ItemsDeleted:   len(vr.VolumesDeleted),
		SpaceReclaimed: vr.SpaceReclaimed,
	})
	log.WithField("reclaimed_bytes", vr.SpaceReclaimed).
		Infof("cleaned up unused/dangling volumes, space reclaimed: %d bytes", vr.SpaceReclaimed)

	// Step 3: dangling and unused images past the retention window.
	ir, err := cli.inner.ImagesPrune(ctx, BuildPruneFilters(model.ResourceImages, opts))
	if err != nil {
		return reports, wrapPruneError(model.ResourceImages, err)
	}
	reports = append(reports, model.PruneReport{
		Resource:       model.ResourceImages,
		ItemsDeleted:   len(ir.ImagesDeleted),
		SpaceReclaimed: ir.SpaceReclaimed,
	})
	log.WithField("reclaimed_bytes", ir.SpaceReclaimed).
		Infof("cleaned up all dangling images and unused images (older than %d hours), space reclaimed: %d bytes",
			opts.KeepImagesUntil, ir.SpaceReclaimed)

	log.Info("finished docker cleanup")
	return reports, nil
}

// wrapPruneError wraps a prune failure in a CLIError. Prune failures most
// commonly stem from the daemon being unavailable or already running a
// prune ("a prune operation is already running").
func wrapPruneError(resource model.Resource, err error) error {
	return model.WrapCLIError(
		model.ExitDockerNotRunning,
		fmt.Sprintf("failed to prune %s", resource),
		err,
	)
}

// Cleaner binds a client and options so the monitor loop can trigger a
// Docker cleanup without knowing about the SDK.
type Cleaner struct {
	Client  *Client
	Options PruneOptions
	Log     logrus.FieldLogger
}

// Cleanup runs the prune sequence with the bound options.
func (c *Cleaner) Cleanup(ctx context.Context) ([]model.PruneReport, error) {
	return Cleanup(ctx, c.Client, c.Options, c.Log)
}
