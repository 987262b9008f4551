package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeASRServer accepts one session, collects the audio and answers with
// reply once the last packet arrives.
func fakeASRServer(t *testing.T, reply func(conn *websocket.Conn, audio []byte)) (*httptest.Server, *receivedSession) {
	t.Helper()
	got := &receivedSession{done: make(chan struct{})}
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(got.done)
		got.appKey = r.Header.Get("X-Api-App-Key")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var audio []byte
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := DecodeMessage(bytes.NewReader(data))
			if err != nil {
				t.Errorf("decode client frame: %v", err)
				return
			}
			payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				t.Errorf("decompress client frame: %v", err)
				return
			}
			switch msg.Header.MessageType {
			case FullClientRequest:
				_ = json.Unmarshal(payload, &got.request)
			case AudioOnlyRequest:
				audio = append(audio, payload...)
				got.packets++
				if msg.IsLastPacket() {
					got.audio = audio
					reply(conn, audio)
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

type receivedSession struct {
	done    chan struct{}
	appKey  string
	request asrRequest
	audio   []byte
	packets int
}

func writeServerFrame(t *testing.T, conn *websocket.Conn, msg *Message) {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeMessage(msg)); err != nil {
		t.Errorf("write server frame: %v", err)
	}
}

func jsonFrame(t *testing.T, body string, last bool) *Message {
	t.Helper()
	payload, err := CompressPayload([]byte(body), GzipCompression)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	flags := PositiveSequenceNumber
	seq := int32(1)
	if last {
		flags, seq = NegativeSequenceNumber, -1
	}
	return &Message{
		Header: Header{
			MessageType:         FullServerResponse,
			MessageFlags:        flags,
			SerializationMethod: JSONSerialization,
			CompressionMethod:   GzipCompression,
		},
		Sequence: seq,
		Payload:  payload,
	}
}

func testClient(srv *httptest.Server) *ASRClient {
	return NewASRClient(Config{
		AppID:       "app",
		AccessToken: "token",
		Endpoint:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		ChunkSize:   4,
		Timeout:     5 * time.Second,
		MaxRetries:  1,
	})
}

func TestTranscribe(t *testing.T) {
	srv, got := fakeASRServer(t, func(conn *websocket.Conn, _ []byte) {
		writeServerFrame(t, conn, jsonFrame(t, `{"result":{"text":"pa"}}`, false))
		writeServerFrame(t, conn, jsonFrame(t, `{"result":{"utterances":[{"text":"pato"},{"text":"sapo"}]}}`, true))
	})

	text, err := testClient(srv).Transcribe(context.Background(), []byte("0123456789"), "wav")
	if err != nil {
		t.Fatalf("Transcribe err: %v", err)
	}
	if text != "pato sapo" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	<-got.done
	if string(got.audio) != "0123456789" || got.packets != 3 {
		t.Fatalf("unexpected audio upload: %q in %d packets", got.audio, got.packets)
	}
	if got.appKey != "app" || got.request.Audio.Language != "pt-BR" || got.request.Audio.Format != "wav" {
		t.Fatalf("unexpected session request: key=%s %+v", got.appKey, got.request.Audio)
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv, _ := fakeASRServer(t, func(conn *websocket.Conn, _ []byte) {
		writeServerFrame(t, conn, &Message{
			Header:    Header{MessageType: ErrorMessage, SerializationMethod: JSONSerialization},
			ErrorCode: 45000001,
			Payload:   []byte("invalid audio"),
		})
	})

	_, err := testClient(srv).Transcribe(context.Background(), []byte("xx"), "wav")
	if err == nil || !strings.Contains(err.Error(), "invalid audio") {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	client := NewASRClient(Config{AppID: "a", AccessToken: "b"})
	if _, err := client.Transcribe(context.Background(), nil, "wav"); err != ErrEmptyAudio {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestTranscribeRequiresCredentials(t *testing.T) {
	client := NewASRClient(Config{})
	if _, err := client.Transcribe(context.Background(), []byte("x"), "wav"); err == nil {
		t.Fatal("expected credentials error")
	}
}

func TestProtocolRoundTrip(t *testing.T) {
	original := NewAudioOnlyRequest([]byte("audio"), 5, true, NoCompression)
	decoded, err := DecodeMessage(bytes.NewReader(EncodeMessage(original)))
	if err != nil {
		t.Fatalf("DecodeMessage err: %v", err)
	}
	if decoded.Header != original.Header || decoded.Sequence != -5 || !decoded.IsLastPacket() {
		t.Fatalf("unexpected decoded message: %+v", decoded)
	}
	if !bytes.Equal(decoded.Payload, []byte("audio")) {
		t.Fatalf("payload mismatch: %q", decoded.Payload)
	}

	errFrame := &Message{Header: Header{MessageType: ErrorMessage}, ErrorCode: 7, Payload: []byte("boom")}
	decoded, err = DecodeMessage(bytes.NewReader(EncodeMessage(errFrame)))
	if err != nil {
		t.Fatalf("DecodeMessage err: %v", err)
	}
	if decoded.ErrorCode != 7 || string(decoded.Payload) != "boom" {
		t.Fatalf("unexpected error frame: %+v", decoded)
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("fala ", 100))
	compressed, err := CompressPayload(data, GzipCompression)
	if err != nil {
		t.Fatalf("CompressPayload err: %v", err)
	}
	out, err := DecompressPayload(compressed, GzipCompression)
	if err != nil {
		t.Fatalf("DecompressPayload err: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("decompressed data doesn't match original")
	}
	if _, err := CompressPayload(data, CompressionMethod(9)); err == nil {
		t.Fatal("expected unsupported compression error")
	}
}
