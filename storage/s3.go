package storage

import (
	"bytes"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Client uploads rendered canvas exports to an S3 bucket as the durable
// backing store behind the save-canvas capability.
type S3Client struct {
	client *s3.S3
	bucket string
}

// NewS3Client dials the given AWS region and targets bucket for all saves.
func NewS3Client(region, bucket string) (*S3Client, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}

	return &S3Client{
		client: s3.New(sess),
		bucket: bucket,
	}, nil
}

// SaveCanvasSVG uploads a rendered SVG export of a room's canvas and
// returns the object's key, suitable for persisting as canvas_s3_key.
func (c *S3Client) SaveCanvasSVG(roomID string, svg []byte) (string, error) {
	key := fmt.Sprintf("canvases/%s/%d.svg", roomID, time.Now().UnixNano())

	_, err := c.client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(svg),
		ContentType: aws.String("image/svg+xml"),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}
