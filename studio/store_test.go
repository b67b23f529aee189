package studio

import (
	"testing"
	"time"

	"github.com/Sreyaes/DubMaster/models"
)

func testScene() *models.Scene {
	return &models.Scene{
		ID:      "scene-1",
		Title:   "A Duel at Dawn",
		Context: "Two rivals meet in the mist.",
		Dialogue: []models.DialogueLine{
			{Character: "Ash", Text: "Fight me.", Emotion: "tense"},
		},
		Language: "en",
	}
}

func TestSceneMediaPatches(t *testing.T) {
	s := NewStore()
	s.ReplaceScene(testScene())

	s.SetSceneImage("/media/img")
	s.SetSceneVideo("/media/vid")
	s.SetSyncedVideo("/media/sync")

	scene := s.Scene()
	if scene.ImageURL != "/media/img" || scene.VideoURL != "/media/vid" || scene.SyncedVideoURL != "/media/sync" {
		t.Fatalf("media fields not patched: %+v", scene)
	}

	// Later lip-sync renders overwrite; latest wins.
	s.SetSyncedVideo("/media/sync2")
	if got := s.Scene().SyncedVideoURL; got != "/media/sync2" {
		t.Fatalf("synced url = %q, want latest", got)
	}
}

func TestMediaPatchWithoutSceneIsIgnored(t *testing.T) {
	s := NewStore()
	s.SetSceneImage("/media/img")
	if s.Scene() != nil {
		t.Fatal("patch on empty store created a scene")
	}
}

func TestSceneReturnsCopy(t *testing.T) {
	s := NewStore()
	s.ReplaceScene(testScene())

	scene := s.Scene()
	scene.Title = "mutated"
	scene.Dialogue[0].Text = "mutated"

	fresh := s.Scene()
	if fresh.Title != "A Duel at Dawn" || fresh.Dialogue[0].Text != "Fight me." {
		t.Fatal("Scene() returned a shared reference")
	}
}

func TestReplacePerformanceDiscardsFeedback(t *testing.T) {
	s := NewStore()
	s.ReplacePerformance(&models.Performance{Duration: 2, Timestamp: time.Now()})
	s.SetFeedback("nice take")
	s.SetTranscription("fight me")

	s.ReplacePerformance(&models.Performance{Duration: 3, Timestamp: time.Now()})

	if s.Feedback() != "" {
		t.Fatal("feedback survived a new performance")
	}
	if s.Transcription() != "" {
		t.Fatal("transcription survived a new performance")
	}
}

func TestResetSecondaryFlow(t *testing.T) {
	s := NewStore()
	s.ReplaceScene(testScene())
	s.ReplacePerformance(&models.Performance{Duration: 2})
	s.SetFeedback("good")
	s.SetShowSynced(true)

	s.ResetSecondaryFlow()

	if s.PerformanceView() != nil {
		t.Fatal("performance survived reset")
	}
	if s.Feedback() != "" {
		t.Fatal("feedback survived reset")
	}
	if s.ShowSynced() {
		t.Fatal("view toggle survived reset")
	}
	if s.Scene() == nil {
		t.Fatal("reset dropped the scene; only the secondary flow should clear")
	}
}

func TestPerformanceAudio(t *testing.T) {
	s := NewStore()
	if _, _, ok := s.PerformanceAudio(); ok {
		t.Fatal("audio reported present on empty store")
	}

	s.ReplacePerformance(&models.Performance{Audio: []byte("pcm"), MIMEType: "audio/webm"})
	audio, mimeType, ok := s.PerformanceAudio()
	if !ok || string(audio) != "pcm" || mimeType != "audio/webm" {
		t.Fatalf("PerformanceAudio = (%q, %q, %v)", audio, mimeType, ok)
	}
}
