// Package services implements the collaborators the download engine drives.
//
// # Streaming
//
// [StreamService] talks to a local stream proxy that owns the session with the streaming
// backend. The proxy exposes two endpoints:
//   - GET /api/session : 200 when the configured token is accepted, 401 otherwise
//   - GET /api/stream/{kind}/{id} : the compressed audio stream for a track or episode
//
// The token is sent as a bearer token on every request. A stream that goes quiet for longer
// than the configured timeout fails with [shared.ErrStreamTimeout].
//
// # Metadata
//
// [SpotifyService] wraps the zmb3 Web API client authenticated through the OAuth2 client
// credentials flow. Containers are paged with NextPage until [spotify.ErrNoMorePages].
//
// # Codecs
//
// [FFmpeg] implements both [Decoder] and [Encoder] by piping through an ffmpeg process.
// PCM is exchanged as signed 16-bit little endian stereo at 44.1kHz.
//
// # Tags
//
// [FileTagger] writes ID3v2.4 frames to mp3 files and Vorbis comments plus a front cover picture
// block to flac files.
//
// # Error Handling
//
// Services wrap sentinel errors from the shared package:
//   - [shared.ErrAuthFailed] : credentials rejected
//   - [shared.ErrTrackUnavailable] : remote 403/404/451, track cannot be streamed
//   - [shared.ErrContainerNotFound] : playlist or album lookup returned 404
//   - [shared.ErrAPIRequest] : any other non-2xx response
//   - [shared.ErrDecode] / [shared.ErrEncode] / [shared.ErrTag] : codec and tagging failures
package services
