package api

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ApiResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

func sendBadRequestResponse(w http.ResponseWriter, route, message string) {
	sendErrorWithCodeResponse(w, route, message, http.StatusBadRequest)
}

func sendServerErrorResponse(w http.ResponseWriter, route, message string) {
	sendErrorWithCodeResponse(w, route, message, http.StatusInternalServerError)
}

func sendErrorWithCodeResponse(w http.ResponseWriter, route, message string, errorcode int) {
	w.WriteHeader(errorcode)
	j := json.NewEncoder(w)
	response := &ApiResponse{}
	response.Status = "ERROR: " + message
	err := j.Encode(response)

	if err != nil {
		logrus.Errorf("error serializing json error for API %v route: %v", route, err)
	}
}

func sendOKResponse(w http.ResponseWriter, route string, data interface{}) {
	j := json.NewEncoder(w)
	response := &ApiResponse{}
	response.Status = "OK"
	response.Data = data

	err := j.Encode(response)
	if err != nil {
		logrus.Errorf("error serializing json data for API %v route: %v", route, err)
	}
}
