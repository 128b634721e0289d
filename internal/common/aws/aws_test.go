package aws

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: awssdk.String("ses-1")}, nil
}

type fakeSNS struct {
	input *sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{MessageId: awssdk.String("sns-1")}, nil
}

func TestSESClient_SendEmail(t *testing.T) {
	fake := &fakeSES{}
	c := &SESClient{client: fake, from: "loans@example.com"}

	id, err := c.SendEmail(context.Background(), "john@example.com", "Approved", "Hello John")
	require.NoError(t, err)
	assert.Equal(t, "ses-1", id)
	assert.Equal(t, "loans@example.com", *fake.input.Source)
	assert.Equal(t, []string{"john@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "Approved", *fake.input.Message.Subject.Data)
	assert.Equal(t, "Hello John", *fake.input.Message.Body.Text.Data)

	fake.err = errors.New("throttled")
	_, err = c.SendEmail(context.Background(), "john@example.com", "s", "b")
	assert.EqualError(t, err, "throttled")
}

func TestSNSClient_SendSMS(t *testing.T) {
	tests := []struct {
		name     string
		senderID string
		validate func(t *testing.T, in *sns.PublishInput)
	}{
		{
			name: "no sender id",
			validate: func(t *testing.T, in *sns.PublishInput) {
				assert.NotContains(t, in.MessageAttributes, "AWS.SNS.SMS.SenderID")
			},
		},
		{
			name:     "with sender id",
			senderID: "LOANS",
			validate: func(t *testing.T, in *sns.PublishInput) {
				assert.Equal(t, "LOANS", *in.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSNS{}
			c := &SNSClient{client: fake, senderID: tt.senderID}
			id, err := c.SendSMS(context.Background(), "+919876543210", "approved")
			require.NoError(t, err)
			assert.Equal(t, "sns-1", id)
			assert.Equal(t, "+919876543210", *fake.input.PhoneNumber)
			assert.Equal(t, "Transactional", *fake.input.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue)
			tt.validate(t, fake.input)
		})
	}
}
