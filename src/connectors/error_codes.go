package connectors

import "fmt"

// DhanErrorCodes maps Dhan v2 errorCode values to human-readable messages.
var DhanErrorCodes = map[string]string{
	"DH-901": "Invalid Authentication: access token is invalid or expired",
	"DH-902": "Invalid Access: not authorised to access this API",
	"DH-903": "User Account error: check segment activation or account status",
	"DH-904": "Rate Limit: too many requests, throttle API calls",
	"DH-905": "Input Exception: missing or badly formed request field",
	"DH-906": "Order Error: incorrect or incomplete order request",
	"DH-907": "Data Error: incorrect parameters, no data to return",
	"DH-908": "Internal Server Error",
	"DH-909": "Network Error: API unable to communicate with backend",
	"DH-910": "Others: unclassified broker error",
	"RS-901": "Order rejected by risk system",
}

// GetErrorMsg returns a human-readable message for a given Dhan error code.
// If the code is unknown, returns a generic message including the code.
func GetErrorMsg(code string) string {
	if msg, ok := DhanErrorCodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("unknown broker error code %s", code)
}
