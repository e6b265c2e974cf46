package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/hospitalms/patient-portal/internal/config"
)

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	cfg := &appconfig.Config{AWSRegion: "us-west-2", AWSAccessKeyID: "AKID", AWSSecretAccessKey: "SECRET"}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
}

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	cfg := &appconfig.Config{AWSRegion: "us-east-1", AWSAccessKeyID: "a", AWSSecretAccessKey: "b", AWSEndpointOverride: "http://localstack:4566"}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, awsCfg.EndpointResolverWithOptions)

	endpoint, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(sqs.ServiceID, "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localstack:4566", endpoint.URL)

	_, err = awsCfg.EndpointResolverWithOptions.ResolveEndpoint("S3", "us-east-1")
	assert.Error(t, err)
}

func TestUsesEndpointOverride(t *testing.T) {
	assert.True(t, usesEndpointOverride(sqs.ServiceID))
	assert.True(t, usesEndpointOverride(sesv2.ServiceID))
	assert.False(t, usesEndpointOverride("DynamoDB"))
}
