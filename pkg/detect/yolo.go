// Package detect は ONNX Runtime 上の YOLOv8 モデルによる吹き出し検出を提供します。
package detect

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sort"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/shouni/go-comic-trans/pkg/domain"
)

const (
	// DefaultConfThreshold は検出採用の信頼度下限です。
	DefaultConfThreshold = 0.3
	// DefaultIoUThreshold は NMS の重なり判定しきい値です。
	DefaultIoUThreshold = 0.45
	// inputSize はモデルの入力解像度です (正方形)。
	inputSize = 640
)

// Config は検出器の設定です。
type Config struct {
	ModelPath     string  // 吹き出し検出用 YOLOv8 モデル (.onnx)
	LibraryPath   string  // onnxruntime 共有ライブラリ (空なら既定の探索に任せる)
	ConfThreshold float32 // 0 の場合は DefaultConfThreshold
	IoUThreshold  float32 // 0 の場合は DefaultIoUThreshold
}

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// initRuntime はプロセス内で一度だけ ONNX Runtime を初期化します。
func initRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// Detector は YOLOv8 ONNX モデルのセッションを保持します。
// Detect は並行呼び出しを想定していません。ページ単位で直列に使います。
type Detector struct {
	session       *ort.DynamicAdvancedSession
	confThreshold float32
	iouThreshold  float32
	logger        *slog.Logger
}

// NewDetector はモデルを読み込み、新しい Detector を生成します。
// 使い終わったら必ず Close を呼びます。
func NewDetector(cfg Config, logger *slog.Logger) (*Detector, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("detect: モデルパスが設定されていません")
	}
	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("ONNX Runtime の初期化に失敗しました: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("検出モデル %s の読み込みに失敗しました: %w", cfg.ModelPath, err)
	}

	conf := cfg.ConfThreshold
	if conf <= 0 {
		conf = DefaultConfThreshold
	}
	iou := cfg.IoUThreshold
	if iou <= 0 {
		iou = DefaultIoUThreshold
	}

	return &Detector{
		session:       session,
		confThreshold: conf,
		iouThreshold:  iou,
		logger:        logger,
	}, nil
}

// Close はセッションを破棄します。
func (d *Detector) Close() error {
	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	return err
}

// Detect はページ画像から吹き出し候補の矩形を検出します。
// 返り値の座標は元画像のピクセル座標です。順序は信頼度降順です。
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]domain.Detection, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	lb := letterbox(img, inputSize)

	inputShape := ort.NewShape(1, 3, inputSize, inputSize)
	inputTensor, err := ort.NewTensor(inputShape, lb.data)
	if err != nil {
		return nil, fmt.Errorf("入力テンソルの生成に失敗しました: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("推論の実行に失敗しました: %w", err)
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("予期しない出力テンソル型です: %T", outputs[0])
	}

	shape := outputTensor.GetShape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("予期しない出力形状です: %v", shape)
	}

	dets := d.decode(outputTensor.GetData(), int(shape[1]), int(shape[2]), lb)
	dets = nonMaxSuppression(dets, d.iouThreshold)

	d.logger.Debug("吹き出し検出が完了しました",
		"candidates", len(dets),
		"conf_threshold", d.confThreshold,
	)
	return dets, nil
}

// letterboxed は前処理結果と座標復元に必要なパラメータです。
type letterboxed struct {
	data  []float32
	scale float32
	padX  float32
	padY  float32
	origW int
	origH int
}

// letterbox はアスペクト比を保ったまま size[px] 正方形へ収め、
// 余白を灰色で埋めて CHW float32 へ変換します。
func letterbox(img image.Image, size int) letterboxed {
	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	scale := float32(size) / float32(origW)
	if s := float32(size) / float32(origH); s < scale {
		scale = s
	}
	newW := int(float32(origW) * scale)
	newH := int(float32(origH) * scale)
	padX := float32(size-newW) / 2
	padY := float32(size-newH) / 2

	data := make([]float32, 3*size*size)
	for i := range data {
		data[i] = 114.0 / 255.0 // YOLO 標準のパディング色
	}

	plane := size * size
	for y := 0; y < newH; y++ {
		srcY := bounds.Min.Y + int(float32(y)/scale)
		if srcY >= bounds.Max.Y {
			srcY = bounds.Max.Y - 1
		}
		dstY := y + int(padY)
		for x := 0; x < newW; x++ {
			srcX := bounds.Min.X + int(float32(x)/scale)
			if srcX >= bounds.Max.X {
				srcX = bounds.Max.X - 1
			}
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			idx := dstY*size + x + int(padX)
			data[idx] = float32(r>>8) / 255.0
			data[plane+idx] = float32(g>>8) / 255.0
			data[2*plane+idx] = float32(b>>8) / 255.0
		}
	}

	return letterboxed{
		data:  data,
		scale: scale,
		padX:  padX,
		padY:  padY,
		origW: origW,
		origH: origH,
	}
}

// decode は [1, attrs, anchors] 形式の出力を元画像座標の矩形へ変換します。
// attrs は cx, cy, w, h に続いてクラススコアが並びます (単一クラスなら 5)。
func (d *Detector) decode(out []float32, attrs, anchors int, lb letterboxed) []domain.Detection {
	if attrs < 5 || len(out) < attrs*anchors {
		return nil
	}

	var dets []domain.Detection
	for a := 0; a < anchors; a++ {
		score := out[4*anchors+a]
		for c := 5; c < attrs; c++ {
			if s := out[c*anchors+a]; s > score {
				score = s
			}
		}
		if score < d.confThreshold {
			continue
		}

		cx := out[a]
		cy := out[anchors+a]
		w := out[2*anchors+a]
		h := out[3*anchors+a]

		x1 := (cx - w/2 - lb.padX) / lb.scale
		y1 := (cy - h/2 - lb.padY) / lb.scale
		x2 := (cx + w/2 - lb.padX) / lb.scale
		y2 := (cy + h/2 - lb.padY) / lb.scale

		box := clampBox(x1, y1, x2, y2, lb.origW, lb.origH)
		if box.IsEmpty() {
			continue
		}
		dets = append(dets, domain.Detection{Box: box, Confidence: float64(score)})
	}
	return dets
}

func clampBox(x1, y1, x2, y2 float32, imgW, imgH int) domain.Box {
	xi1 := int(math.Floor(float64(x1)))
	yi1 := int(math.Floor(float64(y1)))
	xi2 := int(math.Ceil(float64(x2)))
	yi2 := int(math.Ceil(float64(y2)))
	if xi1 < 0 {
		xi1 = 0
	}
	if yi1 < 0 {
		yi1 = 0
	}
	if xi2 > imgW {
		xi2 = imgW
	}
	if yi2 > imgH {
		yi2 = imgH
	}
	if xi2 <= xi1 || yi2 <= yi1 {
		return domain.Box{}
	}
	return domain.Box{X: xi1, Y: yi1, Width: xi2 - xi1, Height: yi2 - yi1}
}

// nonMaxSuppression は信頼度降順で重なりの大きい候補を間引きます。
func nonMaxSuppression(dets []domain.Detection, iouThreshold float32) []domain.Detection {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	var kept []domain.Detection
	for _, cand := range dets {
		overlapped := false
		for _, k := range kept {
			if iou(cand.Box, k.Box) > float64(iouThreshold) {
				overlapped = true
				break
			}
		}
		if !overlapped {
			kept = append(kept, cand)
		}
	}
	return kept
}

func iou(a, b domain.Box) float64 {
	ix1 := maxInt(a.X, b.X)
	iy1 := maxInt(a.Y, b.Y)
	ix2 := minInt(a.X+a.Width, b.X+b.Width)
	iy2 := minInt(a.Y+a.Height, b.Y+b.Height)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := float64(iw * ih)
	union := float64(a.Width*a.Height+b.Width*b.Height) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
