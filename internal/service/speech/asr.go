package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultEndpoint 流式输入模式（整段音频，一次返回）
const DefaultEndpoint = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"

// ErrEmptyAudio is returned when there is nothing to transcribe.
var ErrEmptyAudio = errors.New("no audio data to send")

// Config 火山引擎ASR配置
type Config struct {
	AppID       string
	AccessToken string
	Endpoint    string
	// ResourceID selects the billing plan; the default is the hourly plan.
	ResourceID    string
	Language      string
	SampleRate    int
	ChunkSize     int
	ChunkInterval time.Duration
	Timeout       time.Duration
	MaxRetries    int
}

// Enabled reports whether credentials are present.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.AppID) != "" && strings.TrimSpace(c.AccessToken) != ""
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.ResourceID == "" {
		c.ResourceID = "volc.bigasr.sauc.duration"
	}
	if c.Language == "" {
		c.Language = "pt-BR"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 6400 // 16kHz, 16bit, mono, 200ms
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// ASRClient 火山引擎ASR WebSocket客户端
type ASRClient struct {
	cfg    Config
	dialer *websocket.Dialer
}

// NewASRClient 创建ASR客户端
func NewASRClient(cfg Config) *ASRClient {
	cfg = cfg.withDefaults()
	return &ASRClient{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.Timeout,
		},
	}
}

type asrRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
	} `json:"request"`
}

type asrUtterance struct {
	Text     string `json:"text"`
	Definite bool   `json:"definite"`
}

type asrServerMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result"`
}

// Transcribe sends one recording and returns the recognised text.
func (c *ASRClient) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	if !c.cfg.Enabled() {
		return "", fmt.Errorf("ASR credentials not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	connectID := uuid.NewString()
	header := http.Header{}
	header.Set("X-Api-App-Key", strings.TrimSpace(c.cfg.AppID))
	header.Set("X-Api-Access-Key", strings.TrimSpace(c.cfg.AccessToken))
	header.Set("X-Api-Resource-Id", c.cfg.ResourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, err := c.dial(ctx, header)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	// 取消时关闭连接，打断阻塞的读写
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := c.sendRequest(conn, connectID, format); err != nil {
		return "", err
	}

	textCh := make(chan string, 1)
	recvErrCh := make(chan error, 1)
	go func() {
		text, err := c.receive(conn, connectID)
		if err != nil {
			recvErrCh <- err
			return
		}
		textCh <- text
	}()

	sendErrCh := make(chan error, 1)
	go func() {
		sendErrCh <- c.sendAudio(ctx, conn, audio)
	}()

	for {
		select {
		case err := <-sendErrCh:
			if err != nil {
				return "", fmt.Errorf("send audio: %w", err)
			}
			sendErrCh = nil
		case text := <-textCh:
			return text, nil
		case err := <-recvErrCh:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// dial 带重试的连接建立；鉴权失败不重试
func (c *ASRClient) dial(ctx context.Context, header http.Header) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		conn, resp, err := c.dialer.DialContext(ctx, c.cfg.Endpoint, header)
		if err == nil {
			if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
				log.Printf("[asr] connected logid=%s", logid)
			}
			return conn, nil
		}
		lastErr = err
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("asr handshake rejected: status %d: %w", resp.StatusCode, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 200 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("asr connect failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *ASRClient) sendRequest(conn *websocket.Conn, connectID, format string) error {
	var req asrRequest
	req.User.UID = connectID
	req.Audio.Language = c.cfg.Language
	req.Audio.Format = format
	if req.Audio.Format == "" {
		req.Audio.Format = "wav"
	}
	req.Audio.Codec = "raw"
	req.Audio.Rate = c.cfg.SampleRate
	req.Audio.Bits = 16
	req.Audio.Channel = 1
	req.Request.ModelName = "bigmodel"
	req.Request.EnableITN = true
	req.Request.EnablePunc = true
	req.Request.ShowUtterances = true
	req.Request.ResultType = "full"

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal ASR request: %w", err)
	}
	compressed, err := CompressPayload(payload, GzipCompression)
	if err != nil {
		return err
	}
	frame := EncodeMessage(NewFullClientRequest(compressed, GzipCompression))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("send ASR request: %w", err)
	}
	return nil
}

func (c *ASRClient) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	// 服务端FullClientRequest占用序号1，音频从2开始
	sequence := int32(2)
	for i := 0; i < len(audio); i += c.cfg.ChunkSize {
		end := min(i+c.cfg.ChunkSize, len(audio))
		last := end >= len(audio)

		chunk, err := CompressPayload(audio[i:end], GzipCompression)
		if err != nil {
			return err
		}
		frame := EncodeMessage(NewAudioOnlyRequest(chunk, sequence, last, GzipCompression))
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return err
		}
		sequence++

		if last || c.cfg.ChunkInterval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ChunkInterval):
		}
	}
	return nil
}

func (c *ASRClient) receive(conn *websocket.Conn, connectID string) (string, error) {
	var text string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("read ASR response: %w", err)
		}
		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("decode ASR message: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			payload, _ := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			return "", fmt.Errorf("ASR error %d: %s", msg.ErrorCode, strings.TrimSpace(string(payload)))

		case FullServerResponse:
			payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return "", fmt.Errorf("decompress ASR payload: %w", err)
			}
			var resp asrServerMessage
			if err := json.Unmarshal(payload, &resp); err != nil {
				log.Printf("[asr] failed to unmarshal response: %v", err)
				continue
			}
			if resp.Code != 0 && resp.Code != 20000000 {
				return "", fmt.Errorf("ASR API error %d: %s", resp.Code, resp.Message)
			}
			if candidate := resultText(resp); candidate != "" {
				text = candidate
			}
			if msg.IsLastPacket() {
				if text == "" {
					log.Printf("[asr] empty transcript for connection %s", connectID)
				}
				return text, nil
			}
		}
	}
}

func resultText(resp asrServerMessage) string {
	if text := strings.TrimSpace(resp.Result.Text); text != "" {
		return text
	}
	parts := make([]string, 0, len(resp.Result.Utterances))
	for _, u := range resp.Result.Utterances {
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
