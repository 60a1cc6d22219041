// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package present implements the video presentation pipeline: the
// stage between a decoder and a display sink that decides when each
// decoded frame becomes visible and how it is rendered.
//
// The pipeline is built from three internal layers, all driven from a
// single playback goroutine:
//
//   - internal/queue: a small pts-ordered lookahead of decoded frames
//     plus a bounded history of per-frame timing statistics.
//   - internal/avsync: the audio/video sync engine, the display-sync
//     scheduler (vsync quantization with rounding carry, drop/repeat
//     correction) and the audio-drift speed controller.
//   - internal/gpu: the pass-graph renderer — colorspace conversion,
//     scaling, tone mapping, user hooks, dithering and temporal
//     interpolation.
//
// The entry point is Presenter. The host constructs it with its own
// Decoder, Sink and AudioClock implementations and calls WriteFrame
// once per playback-loop iteration; the returned Status tells the
// loop whether to sleep, keep decoding or stop.
package present
