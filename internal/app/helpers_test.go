package app

import "github.com/rustacademy/academy/internal/catalog"

func catalogCourse(title string, price uint, desc string) catalog.Course {
	return catalog.Course{Title: title, Price: price, Description: desc}
}
