// Package audio plays synthesized speech through the system audio device
// using oto/v3, and reports when each clip has drained.
package audio
