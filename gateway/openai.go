package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Sreyaes/DubMaster/models"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// MediaSink stores generated media bytes and returns a serving path for them.
type MediaSink interface {
	Put(data []byte, mimeType string) string
}

// MediaSource resolves a serving path back to the stored bytes, used when a
// generated asset seeds a follow-up job.
type MediaSource interface {
	Get(id string) (data []byte, mimeType string, ok bool)
}

// OpenAI implements Gateway against the OpenAI API: chat completions with
// strict JSON-schema outputs for script and feedback, image generation for the
// concept frame, the Videos API (submit then poll) for scene and lip-sync
// renders, and the audio endpoints for transcription and reference TTS.
type OpenAI struct {
	client       openai.Client
	media        MediaSink
	source       MediaSource
	pollInterval time.Duration
}

// DefaultPollInterval is how often a submitted video job is checked.
const DefaultPollInterval = 5 * time.Second

// NewOpenAI builds the gateway from the OPENAI_API_KEY environment variable.
// A missing key fails here so the studio refuses to boot half-configured.
func NewOpenAI(media MediaSink, source MediaSource) (*OpenAI, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	return &OpenAI{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		media:        media,
		source:       source,
		pollInterval: DefaultPollInterval,
	}, nil
}

// GenerateSchema generates a JSON schema for structured outputs.
// Structured Outputs uses a subset of JSON schema; these flags are necessary
// to comply with the subset.
func GenerateSchema[T any]() interface{} {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// ScriptResponse is the structured output for script generation.
type ScriptResponse struct {
	Title    string                `json:"title" jsonschema_description:"A short, evocative title for the scene"`
	Context  string                `json:"context" jsonschema_description:"One or two sentences of setting and situation for the actors"`
	Dialogue []models.DialogueLine `json:"dialogue" jsonschema_description:"The scene's dialogue, between 1 and 4 lines, in playback order"`
}

// FeedbackResponse is the structured output for director feedback.
type FeedbackResponse struct {
	Feedback string `json:"feedback" jsonschema_description:"Two or three sentences of warm, specific acting feedback addressed to the performer"`
}

var scriptResponseSchema = GenerateSchema[ScriptResponse]()
var feedbackResponseSchema = GenerateSchema[FeedbackResponse]()

// getStructuredResponse calls the chat completions API with JSON schema
// enforcement and parses the result into T.
func getStructuredResponse[T any](ctx context.Context, client openai.Client, prompt string, schema interface{}) (*T, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "structured_response",
		Description: openai.String("Structured data response"),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	chatCompletion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModelGPT4oMini,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(chatCompletion.Choices) == 0 {
		return nil, errMalformed{fmt.Errorf("no response from OpenAI")}
	}

	rawResponse := chatCompletion.Choices[0].Message.Content
	if rawResponse == "" {
		return nil, errMalformed{fmt.Errorf("OpenAI returned empty response. Finish reason: %s", chatCompletion.Choices[0].FinishReason)}
	}

	var structuredResponse T
	if err := json.Unmarshal([]byte(rawResponse), &structuredResponse); err != nil {
		return nil, errMalformed{fmt.Errorf("failed to parse OpenAI JSON response: %w\nRaw content: %s", err, rawResponse)}
	}

	return &structuredResponse, nil
}

// errMalformed marks a provider answer that could not be parsed, so callers
// can classify it as KindGeneration rather than KindProvider.
type errMalformed struct{ err error }

func (e errMalformed) Error() string { return e.err.Error() }
func (e errMalformed) Unwrap() error { return e.err }

func (g *OpenAI) GenerateScript(ctx context.Context, prompt, language string) (*models.Scene, error) {
	scriptPrompt := fmt.Sprintf(`You are a screenwriter creating a very short scripted scene for a dubbing studio.
The user's premise is: "%s".

Write the scene in the language with locale code "%s".
Provide a short title, one or two sentences of context for the actors, and between 1 and 4 lines of dialogue.
Each dialogue line needs a character name, the spoken text, and a one-word emotion for its delivery.
Keep every line short enough to be performed in a single breath.`, prompt, language)

	resp, err := getStructuredResponse[ScriptResponse](ctx, g.client, scriptPrompt, scriptResponseSchema)
	if err != nil {
		var malformed errMalformed
		if errors.As(err, &malformed) {
			return nil, &Error{Kind: KindGeneration, Op: "generate_script", Err: err}
		}
		return nil, &Error{Kind: KindProvider, Op: "generate_script", Err: err}
	}

	if len(resp.Dialogue) == 0 {
		return nil, &Error{Kind: KindGeneration, Op: "generate_script", Err: fmt.Errorf("script has no dialogue lines")}
	}

	return &models.Scene{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(resp.Title),
		Context:   strings.TrimSpace(resp.Context),
		Dialogue:  resp.Dialogue,
		Language:  language,
		CreatedAt: time.Now(),
	}, nil
}

func (g *OpenAI) GenerateConceptImage(ctx context.Context, title, sceneContext string) (string, error) {
	imagePrompt := fmt.Sprintf(`A cinematic concept frame for a scene titled "%s". %s. Film still, dramatic lighting, 35mm.`, title, sceneContext)

	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: imagePrompt,
		Model:  openai.ImageModelGPTImage1,
		Size:   openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return "", &Error{Kind: KindProvider, Op: "generate_concept_image", Err: err}
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		log.Printf("Image generation returned no image part for %q", title)
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", &Error{Kind: KindProvider, Op: "generate_concept_image", Err: fmt.Errorf("decode image payload: %w", err)}
	}

	return g.media.Put(data, "image/png"), nil
}

func (g *OpenAI) GenerateSceneVideo(ctx context.Context, prompt, seedImageURL string) (string, error) {
	videoPrompt := fmt.Sprintf(`A short cinematic scene: %s. Natural camera movement, consistent characters, film grain.`, prompt)

	params := openai.VideoNewParams{
		Prompt:  videoPrompt,
		Model:   openai.VideoModelSora2,
		Seconds: openai.VideoSeconds8,
	}
	if data, mimeType, ok := g.resolveAsset(seedImageURL); ok {
		params.InputReference = openai.File(bytes.NewReader(data), "concept.png", mimeType)
	}

	return g.runVideoJob(ctx, "generate_scene_video", params)
}

func (g *OpenAI) GenerateLipSyncVideo(ctx context.Context, baseVideoURL, transcript, sceneContext string) (string, error) {
	syncPrompt := fmt.Sprintf(`Re-render this video keeping the characters, setting, framing and visual identity exactly as they are.
Only change the mouth and jaw motion so the speech matches this performed dialogue: "%s".
Scene context: %s.`, transcript, sceneContext)

	params := openai.VideoNewParams{
		Prompt:  syncPrompt,
		Model:   openai.VideoModelSora2,
		Seconds: openai.VideoSeconds8,
	}
	if data, mimeType, ok := g.resolveAsset(baseVideoURL); ok {
		params.InputReference = openai.File(bytes.NewReader(data), "base.mp4", mimeType)
	}

	return g.runVideoJob(ctx, "generate_lip_sync_video", params)
}

// runVideoJob submits a video generation job, polls it to a terminal status,
// and stores the finished media. An empty URL with nil error means the job
// completed without yielding media.
func (g *OpenAI) runVideoJob(ctx context.Context, op string, params openai.VideoNewParams) (string, error) {
	job, err := g.client.Videos.New(ctx, params)
	if err != nil {
		return "", classifyVideoErr(op, err)
	}

	log.Printf("Submitted video job %s (%s), polling every %s", job.ID, op, g.pollInterval)

	var final *openai.Video
	err = pollUntilDone(ctx, g.pollInterval, func(ctx context.Context) (bool, error) {
		v, err := g.client.Videos.Get(ctx, job.ID)
		if err != nil {
			return false, classifyVideoErr(op, err)
		}
		switch v.Status {
		case openai.VideoStatusCompleted:
			final = v
			return true, nil
		case openai.VideoStatusFailed:
			return false, &Error{Kind: KindProvider, Op: op, Err: fmt.Errorf("video job %s failed: %s", v.ID, v.Error.Message)}
		default:
			log.Printf("Video job %s status: %s (%d%%)", v.ID, v.Status, v.Progress)
			return false, nil
		}
	})
	if err != nil {
		return "", err
	}

	res, err := g.client.Videos.DownloadContent(ctx, final.ID, openai.VideoDownloadContentParams{})
	if err != nil {
		return "", classifyVideoErr(op, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return "", &Error{Kind: KindProvider, Op: op, Err: fmt.Errorf("download video content: %w", err)}
	}
	if len(data) == 0 {
		log.Printf("Video job %s completed with no media content", final.ID)
		return "", nil
	}

	return g.media.Put(data, "video/mp4"), nil
}

// classifyVideoErr distinguishes elevated-access refusals from generic
// provider failures. The provider reports a missing entitlement for the video
// models as a not-found/forbidden class of API error.
func classifyVideoErr(op string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == http.StatusNotFound || apierr.StatusCode == http.StatusForbidden {
			return &Error{Kind: KindQuota, Op: op, Err: err}
		}
	}
	return &Error{Kind: KindProvider, Op: op, Err: err}
}

func (g *OpenAI) TranscribeAudio(ctx context.Context, audio []byte, mimeType string) string {
	transcription, err := g.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  openai.File(bytes.NewReader(audio), "take.webm", mimeType),
	})
	if err != nil {
		// Transcription failure must not abort the recording flow.
		log.Printf("Transcription failed: %v", err)
		return ""
	}
	return strings.TrimSpace(transcription.Text)
}

// ReferencePCMSampleRate is the sample rate of SynthesizeReferenceAudio
// output: raw little-endian 16-bit PCM, mono.
const ReferencePCMSampleRate = 24000

func (g *OpenAI) SynthesizeReferenceAudio(ctx context.Context, text, voiceID string) ([]byte, error) {
	res, err := g.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelGPT4oMiniTTS,
		Input:          text,
		Voice:          referenceVoice(voiceID),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		log.Printf("Reference TTS failed: %v", err)
		return nil, &Error{Kind: KindProvider, Op: "synthesize_reference_audio", Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &Error{Kind: KindProvider, Op: "synthesize_reference_audio", Err: err}
	}
	return data, nil
}

// referenceVoice maps a requested voice ID onto a provider voice, defaulting
// to a neutral one.
func referenceVoice(voiceID string) openai.AudioSpeechNewParamsVoice {
	switch voiceID {
	case "echo":
		return openai.AudioSpeechNewParamsVoiceEcho
	case "fable":
		return openai.AudioSpeechNewParamsVoice("fable")
	case "nova":
		return openai.AudioSpeechNewParamsVoice("nova")
	case "onyx":
		return openai.AudioSpeechNewParamsVoice("onyx")
	case "shimmer":
		return openai.AudioSpeechNewParamsVoiceShimmer
	default:
		return openai.AudioSpeechNewParamsVoiceAlloy
	}
}

// fallbackFeedback is used whenever the feedback call fails; feedback is
// cosmetic and must never block the flow.
const fallbackFeedback = "That was a committed take! Keep working on matching the emotion of each line and try another pass when you're ready."

func (g *OpenAI) RequestDirectorFeedback(ctx context.Context, scene *models.Scene, duration float64, transcript string) string {
	feedbackPrompt := fmt.Sprintf(`You are a supportive film director reviewing a voice actor's dub of a scene.

Scene title: %s
Scene context: %s
The scripted dialogue:
%s

The actor's take lasted %.1f seconds and was transcribed as: "%s".

Give two or three sentences of warm, specific feedback on the performance: pacing, emotional delivery, and how closely the take matched the script. Address the actor directly.`,
		scene.Title, scene.Context, scene.DialogueText(), duration, transcript)

	resp, err := getStructuredResponse[FeedbackResponse](ctx, g.client, feedbackPrompt, feedbackResponseSchema)
	if err != nil {
		log.Printf("Director feedback failed, using fallback: %v", err)
		return fallbackFeedback
	}

	feedback := strings.TrimSpace(resp.Feedback)
	if feedback == "" {
		return fallbackFeedback
	}
	return feedback
}

// resolveAsset loads a previously generated asset by its serving path.
func (g *OpenAI) resolveAsset(url string) ([]byte, string, bool) {
	if g.source == nil || url == "" {
		return nil, "", false
	}
	id := strings.TrimPrefix(url, "/media/")
	if id == url {
		return nil, "", false
	}
	return g.source.Get(id)
}
