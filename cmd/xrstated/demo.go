package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/relation"
	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/xrapi"
)

// runDemo drives one session through the frame loop the way an
// application would, submitting a projection layer every frame, until ctx
// is done. It then requests exit and ends the session.
func runDemo(ctx context.Context, rt *xrapi.Runtime) (frames int, err error) {
	sys := rt.Instance().System()
	id, err := rt.CreateSession(ctx, session.CreateInfo{ApplicationName: "xrstated-demo"})
	if err != nil {
		return 0, err
	}
	defer func() {
		if derr := rt.DestroySession(context.Background(), id); derr != nil && err == nil {
			err = derr
		}
	}()

	local, err := rt.CreateReferenceSpace(ctx, id, session.ReferenceSpaceCreateInfo{
		Type:                 session.ReferenceSpaceLocal,
		PoseInReferenceSpace: relation.IdentityPose,
	})
	if err != nil {
		return 0, err
	}
	if err := rt.BeginSession(ctx, id, session.BeginInfo{ViewConfiguration: sys.ViewConfiguration}); err != nil {
		return 0, err
	}

	views := make([]session.View, len(sys.Views))
	for {
		fs, err := rt.WaitFrame(ctx, id)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if err != nil {
			return frames, err
		}
		if fs.ShouldStop {
			break
		}
		if err := rt.BeginFrame(ctx, id); err != nil {
			return frames, err
		}
		layers, err := demoLayers(ctx, rt, id, local, fs, views)
		if err != nil {
			return frames, err
		}
		if err := rt.EndFrame(ctx, id, session.FrameEndInfo{
			DisplayTime: fs.PredictedDisplayTime,
			BlendMode:   sys.BlendModes[0],
			Layers:      layers,
		}); err != nil {
			return frames, err
		}
		frames++
	}

	bg := context.Background()
	if err := rt.RequestExitSession(bg, id); err != nil {
		return frames, err
	}
	if err := rt.EndSession(bg, id); err != nil {
		return frames, err
	}
	monitoring.Logf("[demo] submitted %d frames", frames)
	return frames, nil
}

// demoLayers locates the views and, when the session should render,
// returns a projection layer built from them.
func demoLayers(ctx context.Context, rt *xrapi.Runtime, id, space handle.ID, fs session.FrameState, views []session.View) ([]session.Layer, error) {
	if !fs.ShouldRender {
		return nil, nil
	}
	_, n, err := rt.LocateViews(ctx, id, xrapi.ViewLocateInfo{
		ViewConfiguration: rt.Instance().System().ViewConfiguration,
		DisplayTime:       fs.PredictedDisplayTime,
		Space:             space,
	}, len(views), views)
	if err != nil {
		return nil, fmt.Errorf("locate views: %w", err)
	}
	layer := &session.ProjectionLayer{Space: space, Views: make([]session.ProjectionView, n)}
	for i := range layer.Views {
		layer.Views[i] = session.ProjectionView{Pose: views[i].Pose, Fov: views[i].Fov}
	}
	return []session.Layer{layer}, nil
}
