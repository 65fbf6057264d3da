// Package yolo runs YOLO ONNX models through OpenCV's DNN module.
package yolo

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/config"
	"github.com/khaledhikmat/scanbill-go/service/inference"
	"github.com/khaledhikmat/scanbill-go/service/inference/yolo/tensor"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

type service struct {
	// WARNING: net is not thread-safe
	mu        sync.Mutex
	net       gocv.Net
	labels    []string
	threshold float32
	inputSize int
}

func New(cfgSvc config.IService) (inference.IService, error) {
	params := cfgSvc.GetDetectorParameters(config.Yolo8DetectorName)

	if _, err := os.Stat(params.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no yolo model exists at %s", params.ModelPath)
	}

	labels, err := tensor.LoadLabels(params.LabelsPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(params.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("error reading yolo model %s", params.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("error setting backend: %w", err)
	}

	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("error setting target: %w", err)
	}

	inputSize := params.InputSize
	if inputSize <= 0 {
		inputSize = 640
	}

	lgr.Logger.Info("yolo detector loaded",
		slog.String("model", params.ModelPath),
		slog.Int("labels", len(labels)),
		slog.String("openCV", gocv.Version()),
	)

	return &service{
		net:       net,
		labels:    labels,
		threshold: float32(params.ScoreThreshold),
		inputSize: inputSize,
	}, nil
}

func (svc *service) Name() string {
	return config.Yolo8DetectorName
}

func (svc *service) Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("error decoding frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, nil
	}

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(svc.inputSize, svc.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	svc.mu.Lock()
	svc.net.SetInput(blob, "")
	output := svc.net.Forward("")
	svc.mu.Unlock()
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected DNN output dims: %v", dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("error reading DNN output: %w", err)
	}

	dets := tensor.Decode(data, dims[1], dims[2], svc.labels, svc.threshold, float32(svc.inputSize))
	for i := range dets {
		dets[i].ID = fmt.Sprintf("%d-%d", frame.Seq, i)
	}
	return dets, nil
}

func (svc *service) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.net.Close()
}
