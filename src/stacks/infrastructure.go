// Package stacks defines the canonical infrastructure stack and the
// pipelines that build and deploy it.
package stacks

import (
	"encoding/json"

	"stackline/src/config"
	"stackline/src/pipeline"
)

// Function is a serverless function whose code bundle is handed to the
// stack at deploy time through a pair of template parameters.
type Function struct {
	LogicalID string
	// Artifact names the build output holding the code bundle.
	Artifact  string
	Directory string
	File      string
	Code      pipeline.CodeReference
	// Events lists the event patterns that invoke the function.
	Events      []map[string]any
	Environment map[string]string
}

// Infrastructure is the stack deployed by the pipeline.
type Infrastructure struct {
	StackName     string
	ArchiveBucket string
	Functions     []Function
}

// NewInfrastructure lays out the event handling functions for the
// configured environment.
func NewInfrastructure(cfg *config.Config) *Infrastructure {
	archive := cfg.Lowered("event-archive")

	fn := func(logicalID, artifact, dir, file string) Function {
		return Function{
			LogicalID: logicalID,
			Artifact:  artifact,
			Directory: dir,
			File:      file,
			Code:      pipeline.NewCodeReference(logicalID),
		}
	}

	consumer := fn("EventBridgeConsumerHandler", "ECLBO", "eventbridge-consumer", "consumer")
	consumer.Events = []map[string]any{{"source": []string{"com.ian"}}}

	producer := fn("EventBridgeProducerHandler", "EPLBO", "eventbridge-producer", "producer")
	producer.Environment = map[string]string{"EVENT_BUS_NAME": cfg.EventBus}

	s3 := fn("EventBridgeS3Handler", "ESLBO", "eventbridge-s3", "consumer")
	s3.Events = []map[string]any{{"source": []string{"com.ian"}, "detail-type": []string{"AWS Lambda event"}}}
	s3.Environment = map[string]string{"BUCKET_NAME": archive}

	alerting := fn("SlackAlertingHandler", "SALBO", "slack-alerting", "alerting")
	alerting.Environment = map[string]string{"AWS_SECRETS_SLACK": "dev/Tread/SlackWebhook"}

	status := fn("PipelineStatusHandler", "PSLBO", "pipeline-status", "status")
	status.Events = []map[string]any{{"source": []string{"aws.codepipeline"}, "detail-type": []string{"CodePipeline Pipeline Execution State Change"}}}
	status.Environment = map[string]string{
		"AWS_SECRETS_GITHUB": "dev/Tread/GitHubToken",
		"GITHUB_HEAD_REF":    cfg.Branch(),
		"GITHUB_PR_NUMBER":   cfg.PRNumber,
	}

	return &Infrastructure{
		StackName:     cfg.Suffixed("InfrastructureStack"),
		ArchiveBucket: archive,
		Functions:     []Function{consumer, producer, s3, alerting, status},
	}
}

// TemplateFile is the template's path inside the infrastructure build output.
func (i *Infrastructure) TemplateFile() string {
	return "cdk.out/" + i.StackName + ".template.json"
}

// Bindings pairs every function's code reference with its build output.
func (i *Infrastructure) Bindings(artifacts map[string]*pipeline.Artifact) []pipeline.CodeBinding {
	bindings := make([]pipeline.CodeBinding, 0, len(i.Functions))
	for _, f := range i.Functions {
		bindings = append(bindings, pipeline.CodeBinding{Code: f.Code, Artifact: artifacts[f.Artifact]})
	}
	return bindings
}

// Template synthesizes the stack's CloudFormation template. Every code
// parameter is a String parameter the deploy action overrides.
func (i *Infrastructure) Template() ([]byte, error) {
	params := map[string]any{}
	resources := map[string]any{
		"EventArchiveBucket": map[string]any{
			"Type":       "AWS::S3::Bucket",
			"Properties": map[string]any{"BucketName": i.ArchiveBucket},
		},
	}

	for _, f := range i.Functions {
		for _, p := range f.Code.Params() {
			params[p] = map[string]any{
				"Type":        "String",
				"Description": "Code location for " + f.LogicalID,
			}
		}

		props := map[string]any{
			"Code": map[string]any{
				"S3Bucket": map[string]any{"Ref": f.Code.BucketParam},
				"S3Key":    map[string]any{"Ref": f.Code.KeyParam},
			},
			"Handler":       "bootstrap",
			"Runtime":       "provided.al2023",
			"Role":          map[string]any{"Fn::GetAtt": []string{f.LogicalID + "Role", "Arn"}},
			"TracingConfig": map[string]any{"Mode": "Active"},
		}
		if len(f.Environment) > 0 {
			props["Environment"] = map[string]any{"Variables": f.Environment}
		}
		resources[f.LogicalID] = map[string]any{"Type": "AWS::Lambda::Function", "Properties": props}
		resources[f.LogicalID+"Role"] = map[string]any{
			"Type": "AWS::IAM::Role",
			"Properties": map[string]any{
				"AssumeRolePolicyDocument": map[string]any{
					"Version": "2012-10-17",
					"Statement": []any{map[string]any{
						"Effect":    "Allow",
						"Principal": map[string]any{"Service": "lambda.amazonaws.com"},
						"Action":    "sts:AssumeRole",
					}},
				},
				"ManagedPolicyArns": []string{"arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"},
			},
		}

		for n, pattern := range f.Events {
			rule := f.LogicalID + "Rule"
			if n > 0 {
				rule += string(rune('A' + n))
			}
			resources[rule] = map[string]any{
				"Type": "AWS::Events::Rule",
				"Properties": map[string]any{
					"EventPattern": pattern,
					"Targets": []any{map[string]any{
						"Id":  f.LogicalID,
						"Arn": map[string]any{"Fn::GetAtt": []string{f.LogicalID, "Arn"}},
					}},
				},
			}
		}
	}

	return json.MarshalIndent(map[string]any{
		"AWSTemplateFormatVersion": "2010-09-09",
		"Description":              i.StackName,
		"Parameters":               params,
		"Resources":                resources,
	}, "", "  ")
}
