/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import "time"

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreditBalance represents a user's spendable credits
type CreditBalance struct {
	UserId  string `json:"userId"`
	Credits int64  `json:"credits"`
}

// CreditHistoryEntry represents a transaction in the user's credit history
type CreditHistoryEntry struct {
	Id           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balanceAfter"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TokenPurchase is returned when a payment intent for a contest token is created
type TokenPurchase struct {
	ClientSecret      string `json:"clientSecret"`
	PaymentIntentId   string `json:"paymentIntentId"`
	Amount            int64  `json:"amount"`
	AmountDisplay     string `json:"amountDisplay"`
	Currency          string `json:"currency"`
	IsFirstSubmission bool   `json:"isFirstSubmission"`
}

// TokenSummary reports how many submission tokens and votes a user holds in a contest
type TokenSummary struct {
	ContestId string `json:"contestId"`
	UserId    string `json:"userId"`
	Tokens    int64  `json:"tokens"`
	Votes     int64  `json:"votes"`
}

// Avatar represents a presenter offered by the video provider
type Avatar struct {
	Id              string `json:"id"`
	Name            string `json:"name"`
	Gender          string `json:"gender,omitempty"`
	PreviewImageURL string `json:"previewImageUrl,omitempty"`
	PreviewVideoURL string `json:"previewVideoUrl,omitempty"`
	Premium         bool   `json:"premium"`
}

// Voice represents a voice offered by either the video or the speech provider
type Voice struct {
	Id         string `json:"id"`
	Name       string `json:"name"`
	Language   string `json:"language,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Category   string `json:"category,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Background represents a scene backdrop offered by the video provider
type Background struct {
	Id         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	URL        string `json:"url,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// VideoJob represents a video generation job
type VideoJob struct {
	VideoId        string  `json:"videoId"`
	Status         string  `json:"status"`
	VideoURL       string  `json:"videoUrl,omitempty"`
	ThumbnailURL   string  `json:"thumbnailUrl,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
	Error          string  `json:"error,omitempty"`
	CreditsCharged int64   `json:"creditsCharged,omitempty"`
}

// WorkflowOutput represents one artifact produced by a GPU workflow run
type WorkflowOutput struct {
	Node string `json:"node,omitempty"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// WorkflowRun represents a GPU workflow execution
type WorkflowRun struct {
	RunId          string           `json:"runId"`
	Status         string           `json:"status"`
	Outputs        []WorkflowOutput `json:"outputs"`
	CreditsCharged int64            `json:"creditsCharged,omitempty"`
}

// CheckoutSession is returned when a credit pack checkout is started
type CheckoutSession struct {
	SessionId string `json:"sessionId"`
	URL       string `json:"url"`
}

// PaymentIntent is the provider-neutral view of a created payment intent
type PaymentIntent struct {
	Id           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
}
