// Package response builds API Gateway proxy responses for the HTTP handlers.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"stackline/src/errs"
)

// Headers are sent on every response, success or failure.
func Headers() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "POST",
		"Content-Type":                 "application/json",
	}
}

// JSON returns a response with status and body marshalled as JSON.
func JSON(status int, body any) events.APIGatewayProxyResponse {
	data, err := json.Marshal(body)
	if err != nil {
		return Failure(errs.Wrap(errs.KindParse, err, "response body could not be encoded"))
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    Headers(),
		Body:       string(data),
	}
}

// OK returns a 200 response.
func OK(body any) events.APIGatewayProxyResponse {
	return JSON(http.StatusOK, body)
}

// Failure returns a 500 response whose body holds the error's properties.
func Failure(err error) events.APIGatewayProxyResponse {
	data, _ := json.Marshal(errs.Properties(err))
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusInternalServerError,
		Headers:    Headers(),
		Body:       string(data),
	}
}

// Write copies r onto an http.ResponseWriter.
func Write(w http.ResponseWriter, r events.APIGatewayProxyResponse) {
	for k, v := range r.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(r.StatusCode)
	_, _ = w.Write([]byte(r.Body))
}
