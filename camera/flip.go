package camera

import "github.com/e7canasta/orion-care-sensor/modules/perception/frame"

// FlipRGB mirrors an interleaved RGB image in place.
//
// SDKs whose hardware cannot flip call this after copying the frame.
// pixels must hold at least width*height*3 bytes.
func FlipRGB(pixels []byte, width, height int, mode FlipMode) {
	const bpp = frame.Channels
	stride := width * bpp

	if mode == FlipVertical || mode == FlipBoth {
		for top, bottom := 0, height-1; top < bottom; top, bottom = top+1, bottom-1 {
			a := pixels[top*stride : (top+1)*stride]
			b := pixels[bottom*stride : (bottom+1)*stride]
			for i := range a {
				a[i], b[i] = b[i], a[i]
			}
		}
	}

	if mode == FlipHorizontal || mode == FlipBoth {
		for y := 0; y < height; y++ {
			row := pixels[y*stride : (y+1)*stride]
			for l, r := 0, width-1; l < r; l, r = l+1, r-1 {
				lp, rp := row[l*bpp:l*bpp+bpp], row[r*bpp:r*bpp+bpp]
				lp[0], rp[0] = rp[0], lp[0]
				lp[1], rp[1] = rp[1], lp[1]
				lp[2], rp[2] = rp[2], lp[2]
			}
		}
	}
}
