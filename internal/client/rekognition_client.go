package client

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"kyc-service/internal/config"
	"kyc-service/internal/fingerprint"
	"kyc-service/internal/util"
)

// RekognitionClient implements LivenessProvider on AWS Rekognition Face
// Liveness. Session results carry a reference image; DetectFaces extracts
// its facial landmarks for fingerprinting.
type RekognitionClient struct {
	client *rekognition.Client
	config *config.AWSConfig
}

func NewRekognitionClient(ctx context.Context, cfg *config.Config) (*RekognitionClient, error) {
	awsCfg := cfg.AWS

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	sdkConfig, err := awsconfig.LoadDefaultConfig(loadCtx,
		awsconfig.WithRegion(awsCfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	util.Info("Rekognition client initialized",
		zap.String("region", awsCfg.Region),
		zap.String("s3_bucket", awsCfg.S3Bucket),
	)

	return &RekognitionClient{
		client: rekognition.NewFromConfig(sdkConfig),
		config: &awsCfg,
	}, nil
}

func (r *RekognitionClient) IsMock() bool {
	return false
}

// CreateSession opens a Face Liveness session. Audit captures land in the
// configured S3 bucket when one is set.
func (r *RekognitionClient) CreateSession(ctx context.Context) (string, error) {
	input := &rekognition.CreateFaceLivenessSessionInput{
		ClientRequestToken: aws.String(uuid.NewString()),
	}
	if r.config.KMSKeyID != "" {
		input.KmsKeyId = aws.String(r.config.KMSKeyID)
	}
	if r.config.S3Bucket != "" {
		input.Settings = &types.CreateFaceLivenessSessionRequestSettings{
			AuditImagesLimit: aws.Int32(2),
			OutputConfig: &types.LivenessOutputConfig{
				S3Bucket:    aws.String(r.config.S3Bucket),
				S3KeyPrefix: aws.String(r.config.S3KeyPrefix),
			},
		}
	}

	out, err := r.client.CreateFaceLivenessSession(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to create liveness session: %w", err)
	}

	return aws.ToString(out.SessionId), nil
}

// GetResult fetches the outcome of a liveness session. On success the
// reference image is run through DetectFaces to extract landmarks.
func (r *RekognitionClient) GetResult(ctx context.Context, providerSessionID string) (*LivenessResult, error) {
	out, err := r.client.GetFaceLivenessSessionResults(ctx, &rekognition.GetFaceLivenessSessionResultsInput{
		SessionId: aws.String(providerSessionID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get liveness session results: %w", err)
	}

	result := &LivenessResult{
		Status:     string(out.Status),
		Confidence: float64(aws.ToFloat32(out.Confidence)),
	}
	if out.ReferenceImage != nil {
		result.ReferenceImage = out.ReferenceImage.Bytes
	}

	if result.Status == LivenessSucceeded && len(result.ReferenceImage) > 0 {
		landmarks, err := r.detectLandmarks(ctx, result.ReferenceImage)
		if err != nil {
			// fall back to image-hash fingerprinting downstream
			util.Warn("Landmark extraction failed",
				zap.String("provider_session_id", providerSessionID),
				zap.Error(err))
		} else {
			result.Landmarks = landmarks
		}
	}

	return result, nil
}

// detectLandmarks runs DetectFaces on the reference capture and returns the
// landmark set of the most prominent face.
func (r *RekognitionClient) detectLandmarks(ctx context.Context, image []byte) ([]fingerprint.Landmark, error) {
	out, err := r.client.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image: &types.Image{
			Bytes: image,
		},
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect faces: %w", err)
	}
	if len(out.FaceDetails) == 0 {
		return nil, fmt.Errorf("no face detected in reference image")
	}

	detail := out.FaceDetails[0]
	landmarks := make([]fingerprint.Landmark, 0, len(detail.Landmarks))
	for _, lm := range detail.Landmarks {
		landmarks = append(landmarks, fingerprint.Landmark{
			Type: string(lm.Type),
			X:    float64(aws.ToFloat32(lm.X)),
			Y:    float64(aws.ToFloat32(lm.Y)),
		})
	}
	return landmarks, nil
}
