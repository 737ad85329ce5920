// Package audio turns uploaded recordings into acoustics.Sound values.
//
// WAV (integer PCM) is decoded with go-audio/wav and Ogg Vorbis with
// jfreymuth/oggvorbis. Any other container is transcoded to 16-bit PCM WAV
// with the ffmpeg binary first. Multi-channel input is mixed down to mono.
package audio
