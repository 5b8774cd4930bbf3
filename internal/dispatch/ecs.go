package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"vodforge/internal/config"
)

// ECSDispatcher launches one Fargate task per transcode job. The job
// parameters are injected as container environment overrides against the
// configured task definition.
type ECSDispatcher struct {
	client *ecs.Client
	cfg    config.ECS
	region string
}

// NewECSDispatcher wraps the provided ECS client.
func NewECSDispatcher(client *ecs.Client, cfg config.ECS, region string) (*ECSDispatcher, error) {
	if strings.TrimSpace(cfg.Cluster) == "" {
		return nil, fmt.Errorf("ecs cluster required")
	}
	if strings.TrimSpace(cfg.TaskDefinition) == "" {
		return nil, fmt.Errorf("ecs task definition required")
	}
	if strings.TrimSpace(cfg.ContainerName) == "" {
		return nil, fmt.Errorf("ecs container name required")
	}
	return &ECSDispatcher{client: client, cfg: cfg, region: region}, nil
}

func (d *ECSDispatcher) Start(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	assignPublicIP := ecstypes.AssignPublicIpDisabled
	if d.cfg.AssignPublicIP {
		assignPublicIP = ecstypes.AssignPublicIpEnabled
	}

	input := &ecs.RunTaskInput{
		Cluster:        aws.String(d.cfg.Cluster),
		TaskDefinition: aws.String(d.cfg.TaskDefinition),
		LaunchType:     ecstypes.LaunchTypeFargate,
		Count:          aws.Int32(1),
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        d.cfg.Subnets,
				SecurityGroups: d.cfg.SecurityGroups,
				AssignPublicIp: assignPublicIP,
			},
		},
		Overrides: &ecstypes.TaskOverride{
			ContainerOverrides: []ecstypes.ContainerOverride{{
				Name:        aws.String(d.cfg.ContainerName),
				Environment: jobEnvironment(job, d.region),
			}},
		},
	}

	resp, err := d.client.RunTask(ctx, input)
	if err != nil {
		return classifyECSError(err)
	}
	if len(resp.Failures) > 0 {
		failure := resp.Failures[0]
		return &Error{
			Kind: KindNetwork,
			Op:   "run task",
			Err:  fmt.Errorf("%s: %s", aws.ToString(failure.Reason), aws.ToString(failure.Detail)),
		}
	}
	return nil
}

func jobEnvironment(job Job, region string) []ecstypes.KeyValuePair {
	pairs := []ecstypes.KeyValuePair{
		{Name: aws.String(config.EnvJobID), Value: aws.String(job.JobID)},
		{Name: aws.String(config.EnvOutputBucket), Value: aws.String(job.OutputBucket)},
		{Name: aws.String(config.EnvPlaybackBaseURL), Value: aws.String(job.PlaybackBaseURL)},
	}
	if job.SourceURL != "" {
		pairs = append(pairs, ecstypes.KeyValuePair{Name: aws.String(config.EnvSourceURL), Value: aws.String(job.SourceURL)})
	}
	if job.SourceKey != "" {
		pairs = append(pairs, ecstypes.KeyValuePair{Name: aws.String(config.EnvSourceKey), Value: aws.String(job.SourceKey)})
	}
	if job.SourceBucket != "" {
		pairs = append(pairs, ecstypes.KeyValuePair{Name: aws.String(config.EnvSourceBucket), Value: aws.String(job.SourceBucket)})
	}
	if job.BackendEndpoint != "" {
		pairs = append(pairs, ecstypes.KeyValuePair{Name: aws.String(config.EnvBackendEndpoint), Value: aws.String(job.BackendEndpoint)})
	}
	if region != "" {
		pairs = append(pairs, ecstypes.KeyValuePair{Name: aws.String(config.EnvRegion), Value: aws.String(region)})
	}
	return pairs
}

func classifyECSError(err error) error {
	var invalidParameter *ecstypes.InvalidParameterException
	var clusterNotFound *ecstypes.ClusterNotFoundException
	var accessDenied *ecstypes.AccessDeniedException

	switch {
	case errors.As(err, &invalidParameter), errors.As(err, &clusterNotFound):
		return &Error{Kind: KindValidation, Op: "run task", Err: err}
	case errors.As(err, &accessDenied):
		return &Error{Kind: KindAuthorization, Op: "run task", Err: err}
	default:
		return &Error{Kind: KindNetwork, Op: "run task", Err: err}
	}
}
