package embeddings

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/eliben/go-sentencepiece"
	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// maxTokens is the encoder's input window. Longer texts are
	// head-truncated: the first maxTokens tokens are kept, the rest
	// dropped. Applied identically to every call.
	maxTokens = 512

	// hiddenSize is the encoder's output dimensionality.
	hiddenSize = 768
)

// ONNXEncoder runs a fine-tuned BERT-style model through ONNX Runtime
// with a SentencePiece tokenizer. The vector for a text is the mean of
// the final hidden states over its unmasked positions.
type ONNXEncoder struct {
	session   *ort.DynamicSession[int64, float32]
	tokenizer *sentencepiece.Processor
	mu        sync.Mutex
	closed    bool
}

// ONNXConfig locates the encoder's model files.
type ONNXConfig struct {
	ModelPath     string
	TokenizerPath string
	Threads       int
}

// NewONNXEncoder loads the model and tokenizer. Loading a large model
// can be slow, so it honors ctx: pass a deadline to fail fast instead
// of hanging. Any load failure wraps ErrEncoderUnavailable.
func NewONNXEncoder(ctx context.Context, cfg ONNXConfig) (*ONNXEncoder, error) {
	type loaded struct {
		enc *ONNXEncoder
		err error
	}
	done := make(chan loaded, 1)
	go func() {
		enc, err := loadEncoder(cfg)
		done <- loaded{enc, err}
	}()

	select {
	case l := <-done:
		if l.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoderUnavailable, l.err)
		}
		return l.enc, nil
	case <-ctx.Done():
		// The load goroutine is left to finish and discard its result.
		return nil, fmt.Errorf("%w: %v", ErrEncoderUnavailable, ctx.Err())
	}
}

func loadEncoder(cfg ONNXConfig) (*ONNXEncoder, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
	}

	sessionOptions, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer sessionOptions.Destroy()

	threads := cfg.Threads
	if threads <= 0 {
		threads = 4
	}
	if err := sessionOptions.SetIntraOpNumThreads(threads); err != nil {
		log.Warn().Err(err).Msg("Failed to set intra-op threads")
	}

	inputNames := []string{"input_ids", "attention_mask"}
	outputNames := []string{"last_hidden_state"}
	session, err := ort.NewDynamicSession[int64, float32](cfg.ModelPath, inputNames, outputNames)
	if err != nil {
		return nil, fmt.Errorf("creating ONNX session: %w", err)
	}

	file, err := os.Open(cfg.TokenizerPath)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("opening tokenizer file: %w", err)
	}
	defer file.Close()

	tokenizer, err := sentencepiece.NewProcessor(file)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("loading SentencePiece tokenizer: %w", err)
	}

	log.Info().Str("model", cfg.ModelPath).Msg("Encoder loaded")
	return &ONNXEncoder{session: session, tokenizer: tokenizer}, nil
}

// Dimension implements Encoder.
func (e *ONNXEncoder) Dimension() int { return hiddenSize }

// Embed implements Encoder.
func (e *ONNXEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("%w: encoder closed", ErrEmbeddingFailed)
	}

	tokens := e.tokenizer.Encode(text)

	inputIds := make([]int64, maxTokens)
	attentionMask := make([]int64, maxTokens)
	copyLen := len(tokens)
	if copyLen > maxTokens {
		copyLen = maxTokens
	}
	for i := 0; i < copyLen; i++ {
		inputIds[i] = int64(tokens[i].ID)
		attentionMask[i] = 1
	}

	inputShape := []int64{1, maxTokens}
	inputIdsTensor, err := ort.NewTensor(inputShape, inputIds)
	if err != nil {
		return nil, fmt.Errorf("%w: creating input_ids tensor: %v", ErrEmbeddingFailed, err)
	}
	defer inputIdsTensor.Destroy()

	attentionTensor, err := ort.NewTensor(inputShape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("%w: creating attention_mask tensor: %v", ErrEmbeddingFailed, err)
	}
	defer attentionTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32]([]int64{1, maxTokens, hiddenSize})
	if err != nil {
		return nil, fmt.Errorf("%w: creating output tensor: %v", ErrEmbeddingFailed, err)
	}
	defer outputTensor.Destroy()

	err = e.session.Run([]*ort.Tensor[int64]{inputIdsTensor, attentionTensor}, []*ort.Tensor[float32]{outputTensor})
	if err != nil {
		return nil, fmt.Errorf("%w: running model: %v", ErrEmbeddingFailed, err)
	}

	return meanPool(outputTensor.GetData(), attentionMask), nil
}

// EmbedAll implements Encoder.
func (e *ONNXEncoder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// meanPool averages hidden states over unmasked token positions. An
// all-zero mask (empty input) yields the zero vector, the encoder's
// representation of empty text.
func meanPool(hidden []float32, attentionMask []int64) []float32 {
	pooled := make([]float32, hiddenSize)
	var count float32
	for pos, m := range attentionMask {
		if m == 0 {
			continue
		}
		row := hidden[pos*hiddenSize : (pos+1)*hiddenSize]
		for j, v := range row {
			pooled[j] += v
		}
		count++
	}
	if count > 0 {
		for j := range pooled {
			pooled[j] /= count
		}
	}
	return pooled
}

// Close releases the ONNX session and runtime.
func (e *ONNXEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	e.tokenizer = nil
	ort.DestroyEnvironment()
	return nil
}
