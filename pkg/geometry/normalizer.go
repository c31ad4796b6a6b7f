// Package geometry は検出モデルの生出力を、読み順が確定した矩形領域へ正規化します。
package geometry

import (
	"sort"

	"github.com/shouni/go-comic-trans/pkg/domain"
)

// 被覆楕円・切り出しの既定パラメータです。
// いずれも経験的に調整された値で、導出根拠を持たないため設定値として扱います。
const (
	DefaultCropPadding = 10   // 切り出し境界へ足すパディング(px)
	DefaultCoverFactor = 0.98 // 矩形半径に掛ける被覆楕円の係数
)

// Normalizer は生の検出結果から読み順付きの Region リストを組み立てます。
// 変換以外の副作用は持ちません。
type Normalizer struct {
	cropPadding int
	coverFactor float64
}

// NewNormalizer は指定のパディングと被覆係数でノーマライザを生成します。
// ゼロ値には既定値を補います。
func NewNormalizer(cropPadding int, coverFactor float64) *Normalizer {
	if cropPadding <= 0 {
		cropPadding = DefaultCropPadding
	}
	if coverFactor <= 0 {
		coverFactor = DefaultCoverFactor
	}
	return &Normalizer{cropPadding: cropPadding, coverFactor: coverFactor}
}

// Normalize は検出結果を読み順に整列した Region のリストへ変換します。
//
// ID は検出順に 1 始まりで採番した後、(y, x) の昇順（上の行が先、同じ行は左から）
// で安定ソートします。同値の場合は採番済み ID で順序が決まります。
// 検出ゼロ件のときは空リストを返し、下流はエラーなしで短絡します。
func (n *Normalizer) Normalize(dets []domain.Detection, imgWidth, imgHeight int) []domain.Region {
	regions := make([]domain.Region, 0, len(dets))
	for i, det := range dets {
		regions = append(regions, n.buildRegion(i+1, det, imgWidth, imgHeight))
	}

	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i], regions[j]
		if a.Box.Y != b.Box.Y {
			return a.Box.Y < b.Box.Y
		}
		if a.Box.X != b.Box.X {
			return a.Box.X < b.Box.X
		}
		return a.ID < b.ID
	})

	return regions
}

// buildRegion は1件の検出から、中心点・切り出し範囲・被覆楕円を導出します。
func (n *Normalizer) buildRegion(id int, det domain.Detection, imgWidth, imgHeight int) domain.Region {
	box := det.Box
	cx := box.X + box.Width/2
	cy := box.Y + box.Height/2

	crop := domain.Box{
		X: max(0, box.X-n.cropPadding),
		Y: max(0, box.Y-n.cropPadding),
	}
	cropRight := min(imgWidth, box.X+box.Width+n.cropPadding)
	cropBottom := min(imgHeight, box.Y+box.Height+n.cropPadding)
	crop.Width = cropRight - crop.X
	crop.Height = cropBottom - crop.Y

	return domain.Region{
		ID:         id,
		Box:        box,
		Confidence: det.Confidence,
		CenterX:    cx,
		CenterY:    cy,
		CropBox:    crop,
		Cover: domain.CoverShape{
			CenterX:   float64(box.X) + float64(box.Width)/2,
			CenterY:   float64(box.Y) + float64(box.Height)/2,
			SemiMajor: float64(box.Width) / 2 * n.coverFactor,
			SemiMinor: float64(box.Height) / 2 * n.coverFactor,
		},
	}
}
