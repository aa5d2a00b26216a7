// Package snowfield animates a field of falling, physically-interactive
// glyph and image particles over a host surface.
//
// A Session owns one animation surface. It builds glyph/sentence texture
// atlases once at startup, then advances a particle simulation every
// scheduled frame: pointer forces, wind turbulence, impulse-based
// collisions, and a screen-edge wrap policy. Frames are drawn by one of
// two interchangeable backends: a GPU-instanced renderer on wgpu, or a
// CPU rasterizer used transparently when no GPU is available.
//
// Basic use:
//
//	cfg := snowfield.DefaultConfig()
//	s, err := snowfield.New(cfg, snowfield.WithViewport(1920, 1080, 1.0))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s.Start()
//	defer s.Stop()
//
// The package produces no log output by default. Call SetLogger to enable
// structured logging via log/slog.
package snowfield
