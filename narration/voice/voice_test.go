package voice

import (
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/handguide/internal/audio"
	"github.com/dgnsrekt/handguide/internal/cache"
	"github.com/dgnsrekt/handguide/narration/engines"
	"github.com/dgnsrekt/handguide/narration/engines/mock"
)

func newTestVoice(c cache.Cache) (*Voice, *mock.MockEngine, *audio.MockPlayer) {
	engine := mock.New(engines.SampleRate)
	player := audio.NewMockPlayer(engines.SampleRate)
	player.Manual = true
	return New(engine, player, c, Options{Speed: 1, Language: "ko"}), engine, player
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for done")
		return nil
	}
}

func waitPlays(t *testing.T, player *audio.MockPlayer, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(player.Plays()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d plays, got %d", n, len(player.Plays()))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestVoiceSpeakPlaysAndReportsDone(t *testing.T) {
	v, engine, player := newTestVoice(nil)

	done := make(chan error, 1)
	if err := v.Speak("경복궁입니다.", func(err error) { done <- err }); err != nil {
		t.Fatal(err)
	}

	waitPlays(t, player, 1)
	player.Finish()
	if err := waitDone(t, done); err != nil {
		t.Errorf("Expected clean completion, got %v", err)
	}
	if engine.CallCount() != 1 {
		t.Errorf("Expected 1 synthesis, got %d", engine.CallCount())
	}
}

func TestVoiceSpeakWithoutEngine(t *testing.T) {
	v := New(nil, audio.NewMockPlayer(engines.SampleRate), nil, Options{})
	if err := v.Speak("Hello.", nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}

	v = New(mock.New(engines.SampleRate), nil, nil, Options{})
	if err := v.Speak("Hello.", nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}

func TestVoiceSynthesisFailure(t *testing.T) {
	v, engine, _ := newTestVoice(nil)
	engine.SetFailure(errors.New("network down"))

	done := make(chan error, 1)
	v.Speak("Hello.", func(err error) { done <- err })
	if err := waitDone(t, done); err == nil {
		t.Error("Expected synthesis error reported through done")
	}
}

func TestVoiceUsesCache(t *testing.T) {
	m, err := cache.NewManager(cache.Config{})
	if err != nil {
		t.Fatal(err)
	}
	v, engine, player := newTestVoice(m)

	for i := 0; i < 2; i++ {
		done := make(chan error, 1)
		v.Speak("Same sentence.", func(err error) { done <- err })
		waitPlays(t, player, i+1)
		player.Finish()
		waitDone(t, done)
	}

	if engine.CallCount() != 1 {
		t.Errorf("Expected the second sentence served from cache, got %d syntheses", engine.CallCount())
	}
}

func TestVoicePauseBeforeAudioIsReady(t *testing.T) {
	v, engine, player := newTestVoice(nil)
	engine.SetDelay(30 * time.Millisecond)

	done := make(chan error, 1)
	v.Speak("Slow sentence.", func(err error) { done <- err })
	if err := v.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	if len(player.Plays()) != 0 {
		t.Fatal("Expected audio held while paused")
	}

	if err := v.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitPlays(t, player, 1)
	player.Finish()
	if err := waitDone(t, done); err != nil {
		t.Errorf("Unexpected error %v", err)
	}
}

func TestVoicePauseResumePlayback(t *testing.T) {
	v, _, player := newTestVoice(nil)

	v.Speak("Playing.", nil)
	waitPlays(t, player, 1)

	if err := v.Pause(); err != nil {
		t.Fatal(err)
	}
	if player.State() != audio.StatePaused {
		t.Errorf("Expected player paused, got %s", player.State())
	}
	if err := v.Resume(); err != nil {
		t.Fatal(err)
	}
	if player.State() != audio.StatePlaying {
		t.Errorf("Expected player playing, got %s", player.State())
	}
}

func TestVoiceCancel(t *testing.T) {
	v, engine, player := newTestVoice(nil)
	engine.SetDelay(50 * time.Millisecond)

	v.Speak("Never heard.", nil)
	if err := v.Cancel(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if len(player.Plays()) != 0 {
		t.Error("Expected cancelled utterance never to play")
	}
}

func TestVoiceClampsSpeed(t *testing.T) {
	v := New(mock.New(engines.SampleRate), audio.NewMockPlayer(engines.SampleRate), nil, Options{Speed: 5})
	if v.Speed() != engines.MaxSpeed {
		t.Errorf("Expected speed clamped to %v, got %v", engines.MaxSpeed, v.Speed())
	}
}
