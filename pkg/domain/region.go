package domain

import "fmt"

// Box は画像座標系（左上原点）における矩形領域を保持します。
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsEmpty は面積を持たない退化した矩形かどうかを返します。
func (b Box) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Detection は検出モデルが返す生の検出結果（矩形と信頼度）です。
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// CoverShape は原文を塗りつぶすための被覆楕円のパラメータです。
// 矩形の半径に一定のパディング係数（既定 0.98）を掛けた値を保持します。
type CoverShape struct {
	CenterX   float64 `json:"center_x"`
	CenterY   float64 `json:"center_y"`
	SemiMajor float64 `json:"semi_major"`
	SemiMinor float64 `json:"semi_minor"`
}

// Region は検出された吹き出し1個分の確定済みジオメトリです。
// ID は検出順に 1 始まりで採番され、確定後は信頼度・座標とも変更されません。
type Region struct {
	ID         int        `json:"id"`
	Box        Box        `json:"box"`
	Confidence float64    `json:"confidence"`
	CenterX    int        `json:"center_x"`
	CenterY    int        `json:"center_y"`
	CropBox    Box        `json:"crop_box"` // パディング適用・画像境界へクランプ済みの切り出し範囲
	Cover      CoverShape `json:"cover"`
}

// String はログ出力用の短い表現を返します。
func (r Region) String() string {
	return fmt.Sprintf("bubble %d (%d,%d %dx%d conf=%.2f)",
		r.ID, r.Box.X, r.Box.Y, r.Box.Width, r.Box.Height, r.Confidence)
}
