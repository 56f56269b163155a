package trainer

import (
	"encoding/json"
	"os"
)

// Sink は学習メトリクスの出力先。トラッキング基盤自体は外部の責務なので、
// ここでは1点分のメトリクスを受け取るだけの薄いインターフェースにする。
type Sink interface {
	Log(expName string, metrics map[string]float64) error
	Close() error
}

// JSONLSink は1行1点のフラットなJSONを追記するシンク。
type JSONLSink struct {
	file *os.File
	enc  *json.Encoder
}

func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &JSONLSink{file: f, enc: json.NewEncoder(f)}, nil
}

func (s *JSONLSink) Log(expName string, metrics map[string]float64) error {
	record := make(map[string]any, len(metrics)+1)
	record["exp_name"] = expName
	for k, v := range metrics {
		record[k] = v
	}
	return s.enc.Encode(record)
}

func (s *JSONLSink) Close() error {
	return s.file.Close()
}

// DiscardSink は何も記録しない。シンク未指定時の既定値。
type DiscardSink struct{}

func (DiscardSink) Log(string, map[string]float64) error { return nil }
func (DiscardSink) Close() error                         { return nil }
