package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/config"
)

type remoteService struct {
	url    string
	client *http.Client
}

// NewRemote posts each frame as a JPEG to an external inference service and
// expects {"detections": [{"class", "confidence", "bbox": [x1,y1,x2,y2]}]} back,
// with boxes in normalized coordinates.
func NewRemote(cfgSvc config.IService) IService {
	params := cfgSvc.GetDetectorParameters(config.RemoteDetectorName)
	timeout := time.Duration(params.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &remoteService{
		url:    params.InferenceURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (svc *remoteService) Name() string {
	return "remote"
}

type remoteDetection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

func (svc *remoteService) Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", fmt.Sprintf("frame-%d.jpg", frame.Seq))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}

	if err := jpeg.Encode(part, frameImage(frame), &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := svc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Detections []remoteDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	dets := make([]model.Detection, 0, len(result.Detections))
	for i, d := range result.Detections {
		dets = append(dets, model.Detection{
			ID:         fmt.Sprintf("%d-%d", frame.Seq, i),
			Label:      d.Class,
			Confidence: d.Confidence,
			Box:        model.Box{X1: d.BBox[0], Y1: d.BBox[1], X2: d.BBox[2], Y2: d.BBox[3]},
		})
	}
	return dets, nil
}

func (svc *remoteService) Close() error {
	svc.client.CloseIdleConnections()
	return nil
}

// frameImage wraps a packed BGR buffer as an image. Short buffers yield a
// blank image of the frame size.
func frameImage(frame model.Frame) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	if len(frame.Data) < frame.Width*frame.Height*3 {
		return img
	}

	for i, j := 0, 0; j < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = frame.Data[i+2]
		img.Pix[j+1] = frame.Data[i+1]
		img.Pix[j+2] = frame.Data[i]
		img.Pix[j+3] = 0xff
	}
	return img
}
