package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/foxseedlab/chumon/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	// audioChunkBytes is the per-request audio limit of the v2 streaming API.
	audioChunkBytes = 15360
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
}

type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// CloudSpeechEngine streams a finished artifact through Cloud Speech-to-Text
// v2 and reports interim and final hypotheses.
type CloudSpeechEngine struct {
	projectID       string
	credentialsJSON string
	location        string
	model           string

	mu         sync.Mutex
	client     *speech.Client
	openStream func(ctx context.Context) (recognizeStream, error)
}

func NewCloudSpeechEngine(cfg CloudSpeechConfig) *CloudSpeechEngine {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}
	e := &CloudSpeechEngine{
		projectID:       cfg.ProjectID,
		credentialsJSON: cfg.CredentialsJSON,
		location:        location,
		model:           strings.TrimSpace(cfg.Model),
	}
	e.openStream = e.openClientStream
	return e
}

func (e *CloudSpeechEngine) recognizer() string {
	return fmt.Sprintf("projects/%s/locations/%s/recognizers/_", e.projectID, e.location)
}

func (e *CloudSpeechEngine) speechClient(ctx context.Context) (*speech.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client, nil
	}
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(e.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if e.location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", e.location, speechAPIEndpointPort)))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	e.client = client
	return client, nil
}

func (e *CloudSpeechEngine) openClientStream(ctx context.Context) (recognizeStream, error) {
	client, err := e.speechClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.StreamingRecognize(ctx)
}

func (e *CloudSpeechEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

func (e *CloudSpeechEngine) streamingConfig(format audio.Format, locale string) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		Recognizer: e.recognizer(),
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Model:         e.model,
					LanguageCodes: []string{locale},
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
							SampleRateHertz:   int32(format.SampleRateHertz),
							AudioChannelCount: int32(format.Channels),
						},
					},
					Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{InterimResults: true},
			},
		},
	}
}

// Recognize sends the artifact PCM and reports interim hypotheses as they
// arrive. Final segments are joined and reported once the stream ends.
// Returning nil without a final result means the audio held no speech.
func (e *CloudSpeechEngine) Recognize(ctx context.Context, artifact *audio.Artifact, locale string, rcv transcriber.ResultReceiver) error {
	slog.Info("starting cloud speech recognition", "artifact_id", artifact.ID, "location", e.location, "language", locale, "model", e.model, "pcm_bytes", len(artifact.PCM))

	stream, err := e.openStream(ctx)
	if err != nil {
		return classifyError(err)
	}
	if err := stream.Send(e.streamingConfig(artifact.Format, locale)); err != nil {
		_ = stream.CloseSend()
		return classifyError(err)
	}

	recvDone := make(chan error, 1)
	finals := &finalSegments{}
	go func() {
		recvDone <- receiveResults(stream, rcv, finals)
	}()

	if err := sendAudio(stream, artifact.PCM); err != nil {
		_ = stream.CloseSend()
		<-recvDone
		return classifyError(err)
	}
	if err := stream.CloseSend(); err != nil {
		<-recvDone
		return classifyError(err)
	}

	if err := <-recvDone; err != nil {
		return classifyError(err)
	}
	text, ok := finals.joined()
	if !ok {
		slog.Info("cloud speech returned no final result", "artifact_id", artifact.ID)
		return nil
	}
	rcv.OnResult(finals.count(), text, true)
	return nil
}

func sendAudio(stream recognizeStream, pcm []byte) error {
	for off := 0; off < len(pcm); off += audioChunkBytes {
		end := min(off+audioChunkBytes, len(pcm))
		req := &speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
				Audio: pcm[off:end],
			},
		}
		if err := stream.Send(req); err != nil {
			if errors.Is(err, io.EOF) {
				// The server closed the stream; Recv reports the cause.
				return nil
			}
			return fmt.Errorf("send audio chunk: %w", err)
		}
	}
	return nil
}

type finalSegments struct {
	mu    sync.Mutex
	texts []string
	seen  bool
}

func (f *finalSegments) add(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = true
	if t := strings.TrimSpace(text); t != "" {
		f.texts = append(f.texts, t)
	}
}

func (f *finalSegments) joined() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.texts, " "), f.seen
}

func (f *finalSegments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

func receiveResults(stream recognizeStream, rcv transcriber.ResultReceiver, finals *finalSegments) error {
	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		for i, result := range resp.GetResults() {
			if len(result.GetAlternatives()) == 0 {
				continue
			}
			transcript := result.GetAlternatives()[0].GetTranscript()
			if result.GetIsFinal() {
				finals.add(transcript)
				continue
			}
			rcv.OnResult(i, transcript, false)
		}
	}
}

// classifyError turns transport failures into a transcription error with a
// message fit for display. Cancellation passes through unchanged.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return &transcriber.Error{Message: err.Error(), Err: err}
	}
	var msg string
	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.InvalidArgument:
		msg = "the speech service rejected the audio or locale"
	case codes.Unauthenticated, codes.PermissionDenied:
		msg = "the speech service rejected the credentials"
	case codes.ResourceExhausted:
		msg = "the speech service quota is exhausted"
	case codes.Unavailable, codes.DeadlineExceeded:
		msg = "the speech service is unavailable"
	default:
		msg = st.Message()
	}
	return &transcriber.Error{Message: msg, Err: err}
}
