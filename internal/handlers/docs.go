package handlers

import (
	"encoding/json"
	"net/http"
)

type object = map[string]interface{}

func queryParam(name, description string, required bool, schema object) object {
	return object{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      schema,
	}
}

func jsonResponse(description string, schema object) object {
	return object{
		"description": description,
		"content": object{
			"application/json": object{"schema": schema},
		},
	}
}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

var (
	number      = object{"type": "number"}
	nullableNum = object{"type": "number", "nullable": true}
	integer     = object{"type": "integer"}
	str         = object{"type": "string"}
	dateTime    = object{"type": "string", "format": "date-time"}
	date        = object{"type": "string", "format": "date"}

	windowParams = []object{
		queryParam("tail_number", "Aircraft registration (default: configured tail number)", false, str),
		queryParam("start_date", "First day of the window (YYYY-MM-DD, UTC)", true, date),
		queryParam("end_date", "Last day of the window, inclusive (YYYY-MM-DD, UTC)", true, date),
	}

	badRequest = jsonResponse("Invalid parameters", ref("Error"))
)

func openAPIDocument() object {
	flightParams := append([]object{}, windowParams...)
	flightParams = append(flightParams,
		queryParam("page", "Page number (default: 1)", false, object{"type": "integer", "default": 1}),
		queryParam("limit", "Records per page (default: 100, max 1000)", false, object{"type": "integer", "default": 100}),
	)

	return object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "AirLogger API",
			"description": "Aircraft flight history ingestion with Hobbs-time billing, cost and breakeven reporting",
			"version":     "1.0.0",
		},
		"servers": []object{
			{"url": "http://localhost:5000", "description": "Local development server"},
		},
		"paths": object{
			"/api/refresh_data": object{
				"post": object{
					"summary":     "Refresh flight data",
					"description": "Fetch the aircraft's recent flights from FlightAware and store the new ones. Without dates the configured lookback window ending now is used.",
					"parameters": []object{
						queryParam("tail_number", "Aircraft registration", false, str),
						queryParam("start_date", "First day to fetch (YYYY-MM-DD)", false, date),
						queryParam("end_date", "Last day to fetch (YYYY-MM-DD)", false, date),
					},
					"responses": object{
						"200": jsonResponse("Refresh finished", ref("RefreshResponse")),
						"400": badRequest,
						"500": jsonResponse("FlightAware API configuration error", ref("Error")),
					},
				},
			},
			"/api/flights": object{
				"get": object{
					"summary":    "List flights",
					"parameters": flightParams,
					"responses": object{
						"200": jsonResponse("Flights ordered by departure time", object{
							"type": "object",
							"properties": object{
								"data":        object{"type": "array", "items": ref("FlightBilling")},
								"total":       integer,
								"page":        integer,
								"limit":       integer,
								"total_pages": integer,
							},
						}),
						"400": badRequest,
					},
				},
			},
			"/api/flights/{id}": object{
				"get": object{
					"summary": "Get one flight",
					"parameters": []object{
						{"name": "id", "in": "path", "required": true, "schema": str},
					},
					"responses": object{
						"200": jsonResponse("Flight with billing", ref("FlightBilling")),
						"404": jsonResponse("Unknown flight id", ref("Error")),
					},
				},
			},
			"/api/summary": object{
				"get": object{
					"summary":     "Financial summary",
					"description": "Revenue, costs, net profit and breakeven for the window. Breakeven figures are null when revenue per hour does not exceed variable cost per hour.",
					"parameters":  windowParams,
					"responses": object{
						"200": jsonResponse("Summary", ref("FinancialSummary")),
						"400": badRequest,
					},
				},
			},
			"/api/financial-settings": object{
				"get": object{
					"summary": "Get rate configuration",
					"responses": object{
						"200": jsonResponse("Active rates", ref("RateConfig")),
					},
				},
				"put": object{
					"summary":     "Replace rate configuration",
					"description": "All three values are required. Numbers or numeric strings are accepted; negative values are rejected.",
					"requestBody": object{
						"required": true,
						"content": object{
							"application/json": object{"schema": object{
								"type":     "object",
								"required": []string{"revenue_per_hour", "monthly_fixed_costs", "variable_cost_per_hour"},
								"properties": object{
									"revenue_per_hour":       number,
									"monthly_fixed_costs":    number,
									"variable_cost_per_hour": number,
								},
							}},
						},
					},
					"responses": object{
						"200": jsonResponse("Stored rates", ref("RateConfig")),
						"400": badRequest,
					},
				},
			},
			"/health": object{
				"get": object{
					"summary": "Health check",
					"responses": object{
						"200": jsonResponse("API and database are healthy", object{"type": "object"}),
						"503": jsonResponse("Database unreachable", object{"type": "object"}),
					},
				},
			},
			"/metrics": object{
				"get": object{
					"summary": "Prometheus metrics",
					"responses": object{
						"200": object{
							"description": "Prometheus metrics in text format",
							"content":     object{"text/plain": object{"schema": str}},
						},
					},
				},
			},
		},
		"components": object{
			"schemas": object{
				"Error": object{
					"type": "object",
					"properties": object{
						"error":   str,
						"message": str,
						"code":    integer,
					},
				},
				"FlightBilling": object{
					"type": "object",
					"properties": object{
						"id":                    str,
						"tailNumber":            str,
						"departureAirport":      str,
						"arrivalAirport":        str,
						"departureTime":         dateTime,
						"arrivalTime":           dateTime,
						"flightDurationMinutes": integer,
						"createdAt":             dateTime,
						"hobbsMinutes":          integer,
						"billableHours":         number,
						"estimatedRevenue":      number,
					},
				},
				"RateConfig": object{
					"type": "object",
					"properties": object{
						"id":                     integer,
						"revenue_per_hour":       number,
						"monthly_fixed_costs":    number,
						"variable_cost_per_hour": number,
						"updated_at":             dateTime,
					},
				},
				"FinancialSummary": object{
					"type": "object",
					"properties": object{
						"tailNumber":         str,
						"startDate":          dateTime,
						"endDate":            dateTime,
						"daysInPeriod":       integer,
						"totalFlights":       integer,
						"totalFlightMinutes": integer,
						"totalHobbsMinutes":  integer,
						"totalBillableHours": number,
						"totalRevenue":       number,
						"totalVariableCosts": number,
						"totalFixedCosts":    number,
						"netProfit":          number,
						"rates":              ref("RateConfig"),
						"breakeven": object{
							"type": "object",
							"properties": object{
								"profitMarginPerHour":     number,
								"hoursNeeded":             nullableNum,
								"revenueNeeded":           nullableNum,
								"additionalHoursNeeded":   nullableNum,
								"additionalRevenueNeeded": nullableNum,
								"percentageToBreakeven":   nullableNum,
							},
						},
					},
				},
				"RefreshResponse": object{
					"type": "object",
					"properties": object{
						"message": str,
						"result": object{
							"type": "object",
							"properties": object{
								"tailNumber":    str,
								"totalRecords":  integer,
								"normalized":    integer,
								"inserted":      integer,
								"duplicates":    integer,
								"skipped":       integer,
								"skipReasons":   object{"type": "object", "additionalProperties": integer},
								"clamped":       integer,
								"providerError": str,
							},
						},
					},
				},
			},
		},
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the AirLogger API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument())
}
